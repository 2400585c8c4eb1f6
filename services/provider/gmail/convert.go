package gmail

import (
	"strconv"
	"strings"
	"time"

	"github.com/inboxd/inboxd/internal/enum"
	"github.com/inboxd/inboxd/internal/models"
	"github.com/inboxd/inboxd/internal/utils"
	"github.com/inboxd/inboxd/services/provider"
)

// toCanonicalMessage converts one wire message into the canonical
// model. Header extraction is defensive throughout: a missing From
// yields the sentinel unknown sender and a bad date falls back to now.
func toCanonicalMessage(accountID string, wire *wireMessage) *models.Message {
	headers := headerMap(wire.Payload)

	fromAddress, fromName := provider.ParseAddress(headers["from"])
	if fromAddress == "" {
		fromAddress = models.UnknownSender
	}

	bodyText := decodePart(firstPartOfType(wire.Payload, "text/plain"))
	bodyHTML := decodePart(firstPartOfType(wire.Payload, "text/html"))

	snippet := strings.TrimSpace(wire.Snippet)
	if snippet == "" {
		snippet = utils.DeriveSnippet(bodyText, bodyHTML)
	}

	msg := &models.Message{
		ID:                wire.ID,
		AccountID:         accountID,
		Provider:          enum.ProviderGmail,
		ThreadID:          wire.ThreadID,
		InternetMessageID: utils.NormalizeMessageID(headers["message-id"]),
		Subject:           headers["subject"],
		BodyText:          bodyText,
		BodyHTML:          bodyHTML,
		Snippet:           snippet,
		FromAddress:       fromAddress,
		FromName:          fromName,
		ToAddresses:       provider.ParseAddressList(headers["to"]),
		CcAddresses:       provider.ParseAddressList(headers["cc"]),
		BccAddresses:      provider.ParseAddressList(headers["bcc"]),
		SentAt:            messageDate(wire, headers["date"]),
		LabelIDs:          wire.LabelIDs,
		Size:              wire.SizeEstimate,
	}

	applyLabelFlags(msg, wire.LabelIDs)
	return msg
}

// applyLabelFlags maps well-known backend label ids onto the boolean
// flag set. Remote state is authoritative for these.
func applyLabelFlags(msg *models.Message, labelIDs []string) {
	msg.IsRead = true
	msg.IsStarred = false
	msg.IsDeleted = false
	msg.IsDraft = false
	for _, id := range labelIDs {
		switch id {
		case labelUnread:
			msg.IsRead = false
		case labelStar:
			msg.IsStarred = true
		case labelTrash:
			msg.IsDeleted = true
		case labelDraft:
			msg.IsDraft = true
		}
	}
}

// messageDate prefers the backend's internal epoch-millis timestamp,
// then the Date header, then now.
func messageDate(wire *wireMessage, dateHeader string) time.Time {
	if wire.InternalDate != "" {
		if millis, err := strconv.ParseInt(wire.InternalDate, 10, 64); err == nil && millis > 0 {
			return time.UnixMilli(millis).UTC()
		}
	}
	return provider.ParseDate(dateHeader)
}

// headerMap flattens payload headers into a lowercase-keyed map. The
// first occurrence of a header wins.
func headerMap(payload *wirePart) map[string]string {
	headers := make(map[string]string)
	if payload == nil {
		return headers
	}
	for _, h := range payload.Headers {
		key := strings.ToLower(h.Name)
		if _, ok := headers[key]; !ok {
			headers[key] = h.Value
		}
	}
	return headers
}

// firstPartOfType walks the part tree depth-first and returns the
// first part matching the mime type. Multiple parts of the same type
// are never concatenated.
func firstPartOfType(part *wirePart, mimeType string) *wirePart {
	if part == nil {
		return nil
	}
	if strings.EqualFold(part.MimeType, mimeType) && part.Body.Data != "" {
		return part
	}
	for _, child := range part.Parts {
		if found := firstPartOfType(child, mimeType); found != nil {
			return found
		}
	}
	return nil
}

func decodePart(part *wirePart) string {
	if part == nil {
		return ""
	}
	decoded, err := provider.DecodeBase64URLBody(part.Body.Data)
	if err != nil {
		return ""
	}
	return string(decoded)
}

// toCanonicalLabels converts the backend's full label listing. Parent
// links hold label ids, so the "/" name hierarchy is resolved against
// the listing itself; a prefix with no matching label leaves the
// parent unset.
func toCanonicalLabels(accountID string, wires []wireLabel) []*models.Label {
	idByName := make(map[string]string, len(wires))
	for i := range wires {
		idByName[wires[i].Name] = wires[i].ID
	}

	labels := make([]*models.Label, 0, len(wires))
	for i := range wires {
		label := toCanonicalLabel(accountID, &wires[i])
		if name := parentLabelName(&wires[i]); name != "" {
			label.ParentID = idByName[name]
		}
		labels = append(labels, label)
	}
	return labels
}

func toCanonicalLabel(accountID string, wire *wireLabel) *models.Label {
	label := &models.Label{
		ID:           wire.ID,
		AccountID:    accountID,
		Name:         wire.Name,
		Type:         labelType(wire),
		Visible:      wire.LabelListVisibility != "labelHide",
		MessageCount: wire.MessagesTotal,
		ProviderIDs:  models.JSONMap{enum.ProviderGmail.String(): wire.ID},
	}
	if wire.Color != nil {
		label.Color = wire.Color.BackgroundColor
	}
	return label
}

// nested label names use "/" as the hierarchy separator
func parentLabelName(wire *wireLabel) string {
	if wire.Type == "system" {
		return ""
	}
	if idx := strings.LastIndex(wire.Name, "/"); idx > 0 {
		return wire.Name[:idx]
	}
	return ""
}

func labelType(wire *wireLabel) enum.LabelType {
	if wire.Type != "system" {
		return enum.LabelCustom
	}
	switch wire.ID {
	case labelInbox:
		return enum.LabelInbox
	case labelSent:
		return enum.LabelSent
	case labelDraft, "DRAFTS":
		return enum.LabelDrafts
	case labelTrash:
		return enum.LabelTrash
	case labelSpam:
		return enum.LabelSpam
	default:
		return enum.LabelCustom
	}
}
