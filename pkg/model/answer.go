package model

import "time"

// Answer kinds. An answer carries either inline text or a reference to
// a stored file, never both.
const (
	AnswerText = "text"
	AnswerFile = "file"
)

// Answer is one response to an infrastructure filter question,
// persisted alongside the booking that supplied it. The engine checks
// presence only; content belongs to the question-form collaborator.
type Answer struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty"`
	BookingID  string    `json:"booking_id,omitempty" bson:"booking_id,omitempty"`
	QuestionID string    `json:"question_id" bson:"question_id" validate:"required,min=1,max=100"`
	Kind       string    `json:"kind" bson:"kind" validate:"required,oneof=text file"`
	Text       string    `json:"text,omitempty" bson:"text,omitempty"`
	FileRef    string    `json:"file_ref,omitempty" bson:"file_ref,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty" bson:"created_at,omitempty"`
}

func TextAnswer(questionID, text string) Answer {
	return Answer{QuestionID: questionID, Kind: AnswerText, Text: text}
}

func FileAnswer(questionID, fileRef string) Answer {
	return Answer{QuestionID: questionID, Kind: AnswerFile, FileRef: fileRef}
}

// Empty reports whether the answer carries no usable value for its
// declared kind.
func (a Answer) Empty() bool {
	switch a.Kind {
	case AnswerText:
		return a.Text == ""
	case AnswerFile:
		return a.FileRef == ""
	}
	return true
}
