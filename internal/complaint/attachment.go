package complaint

// MaxAttachmentSize is the per-file ceiling for complaint attachments.
const MaxAttachmentSize = 5 * 1024 * 1024 // 5 MiB

// Attachment is a file the user supplied with the complaint. The session
// owns attachments until a dispatch succeeds; the dispatcher only reads
// them.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Data        []byte `json:"-"`
}
