package chat

import (
	"strings"
	"testing"

	"github.com/spec-kit/oms-chat/internal/domain"
	apperrors "github.com/spec-kit/oms-chat/pkg/util/errorutil"
)

func strPtr(s string) *string { return &s }

func typePtr(t domain.MessageType) *domain.MessageType { return &t }

func TestBuildMessageRejects(t *testing.T) {
	cases := []struct {
		name    string
		payload SendMessagePayload
	}{
		{"missing ticket", SendMessagePayload{Message: strPtr("hi")}},
		{"blank text no attachments", SendMessagePayload{TicketID: "T1", Message: strPtr("   ")}},
		{"nothing at all", SendMessagePayload{TicketID: "T1"}},
		{"too long", SendMessagePayload{TicketID: "T1", Message: strPtr(strings.Repeat("a", 11))}},
		{"system type", SendMessagePayload{TicketID: "T1", Message: strPtr("hi"), MessageType: typePtr(domain.MessageTypeSystem)}},
		{"unknown type", SendMessagePayload{TicketID: "T1", Message: strPtr("hi"), MessageType: typePtr("VIDEO")}},
		{"attachment without url", SendMessagePayload{TicketID: "T1", Attachments: []domain.Attachment{{FileName: "a.pdf"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := buildMessage("alice", tc.payload, 10)
			if !apperrors.HasCode(err, apperrors.CodeValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}
}

func TestBuildMessageInfersType(t *testing.T) {
	img := domain.Attachment{FileName: "a.png", URL: "https://cdn/a.png", MimeType: "image/png"}
	pdf := domain.Attachment{FileName: "a.pdf", URL: "https://cdn/a.pdf", MimeType: "application/pdf"}

	cases := []struct {
		name    string
		payload SendMessagePayload
		want    domain.MessageType
	}{
		{"text", SendMessagePayload{TicketID: "T1", Message: strPtr("hello")}, domain.MessageTypeText},
		{"images only", SendMessagePayload{TicketID: "T1", Attachments: []domain.Attachment{img}}, domain.MessageTypeImage},
		{"mixed files", SendMessagePayload{TicketID: "T1", Attachments: []domain.Attachment{img, pdf}}, domain.MessageTypeFile},
		{"explicit lower case", SendMessagePayload{TicketID: "T1", Message: strPtr("x"), MessageType: typePtr("file")}, domain.MessageTypeFile},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := buildMessage("alice", tc.payload, 100)
			if err != nil {
				t.Fatalf("buildMessage: %v", err)
			}
			if msg.MessageType != tc.want {
				t.Errorf("MessageType = %s, want %s", msg.MessageType, tc.want)
			}
			if msg.SenderID != "alice" || msg.TicketID != "T1" {
				t.Errorf("unexpected message identity: %+v", msg)
			}
		})
	}
}

func TestBuildMessageDropsBlankTextWithAttachment(t *testing.T) {
	msg, err := buildMessage("alice", SendMessagePayload{
		TicketID:    "T1",
		Message:     strPtr(" "),
		Attachments: []domain.Attachment{{FileName: "a.pdf", URL: "https://cdn/a.pdf"}},
	}, 100)
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	if msg.Text != nil {
		t.Errorf("Text = %q, want nil", *msg.Text)
	}
}
