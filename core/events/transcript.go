package events

const (
	// KindPartialTranscript identifies mutable interim transcript updates.
	KindPartialTranscript Kind = "partial_transcript"
	// KindTranscript identifies the final transcript for the utterance.
	KindTranscript Kind = "transcript"
)

// PartialTranscript carries an interim transcript snapshot that later
// updates will replace.
type PartialTranscript struct {
	Base
	text string
}

func (t PartialTranscript) String() string { return t.text + "..." }
func (t PartialTranscript) Text() string   { return t.text }

func NewPartialTranscript(text string) PartialTranscript {
	return PartialTranscript{Base: NewBase(KindPartialTranscript), text: text}
}

// Transcript carries the terminal transcript for the user's utterance.
type Transcript struct {
	Base
	text string
}

func (t Transcript) String() string { return t.text }
func (t Transcript) Text() string   { return t.text }

func NewTranscript(text string) Transcript {
	return Transcript{Base: NewBase(KindTranscript), text: text}
}
