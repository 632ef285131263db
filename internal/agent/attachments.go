package agent

import (
	"encoding/base64"
	"strings"

	agentcontext "github.com/JuanCS-Dev/vertice-code/internal/agent/context"
	"github.com/JuanCS-Dev/vertice-code/pkg/models"
)

// newToolResult builds a models.ToolResult from raw executor output,
// computing the long-term-context masked form (C11) once alongside it.
// Content always carries the full unmasked output for the immediate caller.
func newToolResult(toolCallID, content string, isError bool, attachments []models.Attachment) models.ToolResult {
	tr := models.ToolResult{
		ToolCallID:  toolCallID,
		Content:     content,
		IsError:     isError,
		Attachments: attachments,
	}
	if masked := agentcontext.Mask(content, agentcontext.DefaultMaskOptions()); masked.Masked {
		tr.MaskedContent = masked.Content
		tr.CompressionRatio = masked.CompressionRatio
		tr.TokensSaved = masked.TokensSaved
	}
	return tr
}

func artifactsToAttachments(artifacts []Artifact) []models.Attachment {
	if len(artifacts) == 0 {
		return nil
	}
	attachments := make([]models.Attachment, 0, len(artifacts))
	for _, art := range artifacts {
		attType := "file"
		switch art.Type {
		case "screenshot", "image":
			attType = "image"
		case "recording", "video":
			attType = "video"
		case "audio":
			attType = "audio"
		default:
			if strings.HasPrefix(art.MimeType, "image/") {
				attType = "image"
			} else if strings.HasPrefix(art.MimeType, "video/") {
				attType = "video"
			} else if strings.HasPrefix(art.MimeType, "audio/") {
				attType = "audio"
			}
		}

		attachment := models.Attachment{
			ID:       art.ID,
			Type:     attType,
			Filename: art.Filename,
			MimeType: art.MimeType,
			Size:     int64(len(art.Data)),
			URL:      art.URL,
		}
		if attachment.URL == "" && len(art.Data) > 0 && art.MimeType != "" {
			attachment.URL = "data:" + art.MimeType + ";base64," + base64.StdEncoding.EncodeToString(art.Data)
		}
		attachments = append(attachments, attachment)
	}
	return attachments
}
