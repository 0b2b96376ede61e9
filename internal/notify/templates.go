package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// Message is a rendered notification.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

type messageTemplate struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

var templates = map[Kind]messageTemplate{
	KindBookingConfirmed: mustTemplate(KindBookingConfirmed,
		`Your booking for {{.TourTitle}} is confirmed`,
		`Hi {{.UserName}},

your booking for {{.TourTitle}} starting {{.StartDate}} ({{.Participants}} participants) is confirmed.`,
		`<p>Hi {{.UserName}},</p>
<p>your booking for <strong>{{.TourTitle}}</strong> starting {{.StartDate}} ({{.Participants}} participants) is confirmed.</p>`,
	),
	KindBookingCancelled: mustTemplate(KindBookingCancelled,
		`Booking for {{.TourTitle}} was cancelled`,
		`Hi {{.RecipientName}},

the booking for {{.TourTitle}} starting {{.StartDate}} was cancelled.
Reason: {{.Reason}}`,
		`<p>Hi {{.RecipientName}},</p>
<p>the booking for <strong>{{.TourTitle}}</strong> starting {{.StartDate}} was cancelled.</p>
<p>Reason: {{.Reason}}</p>`,
	),
	KindReviewCreated: mustTemplate(KindReviewCreated,
		`New {{.Rating}}-star review for {{.TourTitle}}`,
		`Hi {{.GuideName}},

{{.TourTitle}} received a new review rated {{.Rating}}/5.
{{.Comment}}`,
		`<p>Hi {{.GuideName}},</p>
<p><strong>{{.TourTitle}}</strong> received a new review rated {{.Rating}}/5.</p>
<blockquote>{{.Comment}}</blockquote>`,
	),
}

func mustTemplate(kind Kind, subject, text, html string) messageTemplate {
	name := string(kind)
	return messageTemplate{
		subject: texttemplate.Must(texttemplate.New(name + ".subject").Option("missingkey=zero").Parse(subject)),
		text:    texttemplate.Must(texttemplate.New(name + ".text").Option("missingkey=zero").Parse(text)),
		html:    htmltemplate.Must(htmltemplate.New(name + ".html").Option("missingkey=zero").Parse(html)),
	}
}

// Render executes the templates registered for kind.
func Render(kind Kind, data Data) (Message, error) {
	tpl, ok := templates[kind]
	if !ok {
		return Message{}, fmt.Errorf("notify: unknown kind %q", kind)
	}

	var subject, text, html bytes.Buffer
	if err := tpl.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("notify: render %s subject: %w", kind, err)
	}
	if err := tpl.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("notify: render %s text: %w", kind, err)
	}
	if err := tpl.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("notify: render %s html: %w", kind, err)
	}
	return Message{
		Subject: strings.TrimSpace(subject.String()),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
