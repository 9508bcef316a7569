package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/smtp"

	"quickbite/internal/config"
	"quickbite/internal/logger"
)

// OTPSender delivers a one-time code to a user. Dispatch failures are the
// caller's to log; they never block the auth flow.
type OTPSender interface {
	SendOTP(email, code string) error
}

// GenerateOTP returns a 6-digit numeric one-time code.
func GenerateOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "000000"
	}
	return fmt.Sprintf("%06d", n.Int64())
}

// SMTPSender sends OTP codes over plain SMTP.
type SMTPSender struct {
	cfg config.EmailConfig
	log *logger.Logger
}

func NewSMTPSender(cfg config.EmailConfig, log *logger.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, log: log}
}

func (s *SMTPSender) SendOTP(email, code string) error {
	addr := s.cfg.SMTPHost + ":" + s.cfg.SMTPPort
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)

	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Your verification code\r\n\r\nYour quickbite verification code is %s. It expires in 10 minutes.\r\n",
		s.cfg.From, email, code))

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{email}, msg); err != nil {
		s.log.Error("EMAIL", fmt.Sprintf("Failed to send OTP to %s: %v", email, err))
		return err
	}
	s.log.Info("EMAIL", fmt.Sprintf("OTP sent to %s", email))
	return nil
}
