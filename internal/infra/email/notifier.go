package email

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

// SMTPNotifier mails the operators when a scene fails.
type SMTPNotifier struct {
	host   string
	port   int
	from   string
	to     string
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from, to string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, to: to, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, sceneID, inputKey, code, errorMsg string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	msg := composeFailure(n.from, n.to, sceneID, inputKey, code, errorMsg)

	err := smtp.SendMail(addr, nil, n.from, []string{n.to}, []byte(msg))
	if err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", n.to),
			zap.String("scene_id", sceneID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", n.to),
		zap.String("scene_id", sceneID),
	)
	return nil
}

func composeFailure(from, to, sceneID, inputKey, code, errorMsg string) string {
	subject := fmt.Sprintf("Scene processing failed [%s] %s", code, sceneID)
	body := fmt.Sprintf(
		"Scene processing failed.\r\n\r\n"+
			"Scene: %s\r\n"+
			"Recording: %s\r\n"+
			"Error code: %s\r\n"+
			"Cause: %s\r\n\r\n"+
			"The workflow has been notified; rerun the scene once the cause is fixed.\r\n",
		sceneID, inputKey, code, errorMsg,
	)
	return fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", from, to, subject, body)
}
