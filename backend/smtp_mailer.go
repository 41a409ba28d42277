package backend

import (
	"bytes"
	"net/smtp"
	"text/template"

	log "gopkg.in/inconshreveable/log15.v2"
)

var reportMailTmpl = template.Must(template.New("reportMailTemplate").Parse("From: {{.From}}\r\nTo: {{.To}}\r\nSubject: {{.Subject}}\r\n\r\n{{.Body}}"))

type SMTPMailer struct {
	ServerAddr string
	Auth       smtp.Auth
	From       string
	Logger     log.Logger

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (m *SMTPMailer) SendReport(to, subject, body string) error {
	var data = struct {
		From    string
		To      string
		Subject string
		Body    string
	}{
		From:    m.From,
		To:      to,
		Subject: subject,
		Body:    body,
	}

	buf := &bytes.Buffer{}
	err := reportMailTmpl.Execute(buf, data)
	if err != nil {
		return err
	}

	send := m.sendMail
	if send == nil {
		send = smtp.SendMail
	}

	err = send(m.ServerAddr, m.Auth, m.From, []string{to}, buf.Bytes())
	if err != nil {
		m.Logger.Error("SendReport failed", "to", to, "error", err)
		return err
	}

	m.Logger.Info("SendReport", "to", to)
	return nil
}
