// Package mailparse turns an RFC822 email into the structured record the
// filing layer consumes: sender, recipients, subject, date, body, and
// attachments.
package mailparse

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

type Attachment struct {
	Filename string
	Data     []byte
}

type Message struct {
	From        string
	To          []string
	Subject     string
	Date        time.Time
	Body        string
	Attachments []Attachment
}

// Parse reads one RFC822 message. Unknown charsets are tolerated; the body
// is the first text/plain part found.
func Parse(r io.Reader) (*Message, error) {
	entity, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("invalid RFC822 message: %w", err)
	}

	header := mail.Header{Header: entity.Header}
	msg := &Message{}
	msg.Subject, _ = header.Subject()
	msg.Date, _ = header.Date()
	if from, err := header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
	}
	if to, err := header.AddressList("To"); err == nil {
		for _, addr := range to {
			msg.To = append(msg.To, addr.Address)
		}
	}

	if err := walkEntity(entity, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ParseFile parses an .eml file from the inbox drop folder.
func ParseFile(path string) (*Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	msg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return msg, nil
}

func walkEntity(entity *message.Entity, msg *Message) error {
	mediaType, _, _ := entity.Header.ContentType()
	if strings.HasPrefix(mediaType, "multipart/") {
		mr := entity.MultipartReader()
		if mr == nil {
			return nil
		}
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read multipart: %w", err)
			}
			if err := walkEntity(part, msg); err != nil {
				return err
			}
		}
	}

	disposition, dispParams, _ := entity.Header.ContentDisposition()
	filename := attachmentFilename(entity, disposition, dispParams)
	if filename != "" {
		data, err := io.ReadAll(entity.Body)
		if err != nil {
			return fmt.Errorf("read attachment %s: %w", filename, err)
		}
		msg.Attachments = append(msg.Attachments, Attachment{Filename: filename, Data: data})
		return nil
	}

	if mediaType == "text/plain" && msg.Body == "" {
		data, err := io.ReadAll(entity.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		msg.Body = string(data)
	}
	return nil
}

// attachmentFilename returns the filename of an attachment part, or "" for
// inline content. A filename parameter marks a part as an attachment even
// without an explicit disposition, which some clients omit.
func attachmentFilename(entity *message.Entity, disposition string, dispParams map[string]string) string {
	if name := dispParams["filename"]; name != "" {
		return name
	}
	_, typeParams, _ := entity.Header.ContentType()
	if name := typeParams["name"]; name != "" && disposition != "inline" {
		return name
	}
	if disposition == "attachment" {
		return "attachment"
	}
	return ""
}
