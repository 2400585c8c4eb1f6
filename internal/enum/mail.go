package enum

type ProviderKind string

const (
	ProviderGmail   ProviderKind = "gmail"
	ProviderIMAP    ProviderKind = "imap"
	ProviderGeneric ProviderKind = "generic"
)

func (t ProviderKind) String() string {
	return string(t)
}

type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionError        ConnectionState = "error"
)

func (t ConnectionState) String() string {
	return string(t)
}

type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusFailed  SyncStatus = "failed"
)

func (t SyncStatus) String() string {
	return string(t)
}

type SyncMode string

const (
	SyncModeFull        SyncMode = "full"
	SyncModeIncremental SyncMode = "incremental"
)

func (t SyncMode) String() string {
	return string(t)
}

type LabelType string

const (
	LabelInbox  LabelType = "inbox"
	LabelSent   LabelType = "sent"
	LabelDrafts LabelType = "drafts"
	LabelTrash  LabelType = "trash"
	LabelSpam   LabelType = "spam"
	LabelCustom LabelType = "custom"
)

func (t LabelType) String() string {
	return string(t)
}
