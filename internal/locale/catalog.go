package locale

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys. The English text doubles as the key.
const (
	MsgSucceeded    = "%s finished"
	MsgFailed       = "%s failed: %s"
	MsgTimedOut     = "%s timed out, please try again"
	MsgCancelled    = "%s was cancelled"
	MsgBusy         = "%s is already running on this layer"
	MsgInvalid      = "%s cannot run: %s"
	MsgNotRecorded  = "The new layer was saved but could not be recorded"
	MsgNotPersisted = "The new layer could not be saved to your session"
)

// Operation display names, keyed by operation kind.
var operationNames = map[string]string{
	"bg_remove":  "Background removal",
	"bg_replace": "Background replacement",
	"gen_fill":   "Generative fill",
	"gen_remove": "Object removal",
	"smart_crop": "Smart crop",
	"transcribe": "Transcription",
	"upload":     "Upload",
}

var indonesian = map[string]string{
	MsgSucceeded:             "%s selesai",
	MsgFailed:                "%s gagal: %s",
	MsgTimedOut:              "%s melebihi batas waktu, silakan coba lagi",
	MsgCancelled:             "%s dibatalkan",
	MsgBusy:                  "%s sedang berjalan pada layer ini",
	MsgInvalid:               "%s tidak dapat dijalankan: %s",
	MsgNotRecorded:           "Layer baru tersimpan tetapi gagal dicatat",
	MsgNotPersisted:          "Layer baru gagal disimpan ke sesi Anda",
	"Background removal":     "Hapus latar belakang",
	"Background replacement": "Ganti latar belakang",
	"Generative fill":        "Isi generatif",
	"Object removal":         "Hapus objek",
	"Smart crop":             "Potong pintar",
	"Transcription":          "Transkripsi",
	"Upload":                 "Unggah",
}

func init() {
	for key, msg := range indonesian {
		if err := message.SetString(language.Indonesian, key, msg); err != nil {
			panic(err)
		}
	}
}

// OperationName returns the localized display name of an operation kind.
func OperationName(p *message.Printer, kind string) string {
	name, ok := operationNames[kind]
	if !ok {
		return kind
	}
	return p.Sprintf(name)
}
