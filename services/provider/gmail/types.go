package gmail

// Wire shapes for the Gmail v1 REST surface. These never leak past the
// adapter boundary.

type wireHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type wireBody struct {
	Size int64  `json:"size"`
	Data string `json:"data"`
}

type wirePart struct {
	PartID   string       `json:"partId"`
	MimeType string       `json:"mimeType"`
	Filename string       `json:"filename"`
	Headers  []wireHeader `json:"headers"`
	Body     wireBody     `json:"body"`
	Parts    []*wirePart  `json:"parts"`
}

type wireMessage struct {
	ID           string    `json:"id"`
	ThreadID     string    `json:"threadId"`
	LabelIDs     []string  `json:"labelIds"`
	Snippet      string    `json:"snippet"`
	HistoryID    string    `json:"historyId"`
	InternalDate string    `json:"internalDate"`
	SizeEstimate int64     `json:"sizeEstimate"`
	Payload      *wirePart `json:"payload"`
}

type wireRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

type listResponse struct {
	Messages           []wireRef `json:"messages"`
	NextPageToken      string    `json:"nextPageToken"`
	ResultSizeEstimate int       `json:"resultSizeEstimate"`
}

type wireLabelColor struct {
	TextColor       string `json:"textColor"`
	BackgroundColor string `json:"backgroundColor"`
}

type wireLabel struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Type                string          `json:"type"`
	MessagesTotal       int             `json:"messagesTotal"`
	LabelListVisibility string          `json:"labelListVisibility"`
	Color               *wireLabelColor `json:"color"`
}

type labelsResponse struct {
	Labels []wireLabel `json:"labels"`
}

type historyMessage struct {
	Message wireRef `json:"message"`
}

type historyLabelChange struct {
	Message  wireRef  `json:"message"`
	LabelIDs []string `json:"labelIds"`
}

type historyRecord struct {
	ID              string               `json:"id"`
	MessagesAdded   []historyMessage     `json:"messagesAdded"`
	MessagesDeleted []historyMessage     `json:"messagesDeleted"`
	LabelsAdded     []historyLabelChange `json:"labelsAdded"`
	LabelsRemoved   []historyLabelChange `json:"labelsRemoved"`
}

type historyResponse struct {
	History       []historyRecord `json:"history"`
	NextPageToken string          `json:"nextPageToken"`
	HistoryID     string          `json:"historyId"`
}

type profileResponse struct {
	EmailAddress  string `json:"emailAddress"`
	MessagesTotal int    `json:"messagesTotal"`
	HistoryID     string `json:"historyId"`
}

type sendRequest struct {
	Raw      string `json:"raw"`
	ThreadID string `json:"threadId,omitempty"`
}

type batchModifyRequest struct {
	IDs            []string `json:"ids"`
	AddLabelIDs    []string `json:"addLabelIds,omitempty"`
	RemoveLabelIDs []string `json:"removeLabelIds,omitempty"`
}

type patchLabelRequest struct {
	Name                string `json:"name,omitempty"`
	LabelListVisibility string `json:"labelListVisibility,omitempty"`
}

type wireError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// well-known label ids
const (
	labelUnread = "UNREAD"
	labelStar   = "STARRED"
	labelTrash  = "TRASH"
	labelDraft  = "DRAFT"
	labelInbox  = "INBOX"
	labelSent   = "SENT"
	labelSpam   = "SPAM"
)
