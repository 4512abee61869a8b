package alerting

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// EmailOptions parameterise the SMTP channel.
type EmailOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// EmailChannel delivers alerts as HTML email over SMTP.
type EmailChannel struct {
	opts   EmailOptions
	client *mail.Client
	logger zerolog.Logger
}

// NewEmailChannel constructs an SMTP notification channel.
func NewEmailChannel(opts EmailOptions, logger zerolog.Logger) (*EmailChannel, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("email host is required")
	}
	if opts.From == "" || len(opts.To) == 0 {
		return nil, fmt.Errorf("email from and to addresses are required")
	}

	clientOpts := []mail.Option{
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if opts.Port > 0 {
		clientOpts = append(clientOpts, mail.WithPort(opts.Port))
	}
	if opts.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(opts.Username),
			mail.WithPassword(opts.Password),
		)
	}

	client, err := mail.NewClient(opts.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &EmailChannel{
		opts:   opts,
		client: client,
		logger: logger.With().Str("component", "alert_email").Logger(),
	}, nil
}

// Name identifies the channel in diagnostics.
func (c *EmailChannel) Name() string {
	return "email"
}

// Notify renders the alert template and sends it to every recipient.
func (c *EmailChannel) Notify(ctx context.Context, payload Payload) error {
	msg := mail.NewMsg()
	if err := msg.From(c.opts.From); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(c.opts.To...); err != nil {
		return fmt.Errorf("set to addresses: %w", err)
	}
	msg.Subject(fmt.Sprintf("Price Alert: %s is cheaper now!", payload.ProductName))

	body, err := renderEmailBody(payload)
	if err != nil {
		return fmt.Errorf("render email body: %w", err)
	}
	msg.SetBodyString(mail.TypeTextHTML, body)

	if err := c.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	c.logger.Info().
		Str("product", payload.ProductName).
		Str("store", payload.StoreName).
		Msg("alert delivered via email")
	return nil
}

var emailTemplate = template.Must(template.New("alert").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background-color: #f4f4f4; margin: 0; padding: 20px;">
  <div style="max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 8px; overflow: hidden;">
    <div style="background-color: #28a745; color: #ffffff; padding: 20px; text-align: center;">
      <h1 style="margin: 0;">Price alert!</h1>
    </div>
    <div style="padding: 30px; color: #333333;">
      <p>The product you are tracking has reached your desired price:</p>
      <h2 style="color: #0056b3;">{{.ProductName}}</h2>
      <p>Sold by: <strong>{{.StoreName}}</strong></p>
      <div style="border: 1px solid #dddddd; padding: 15px; border-radius: 5px; text-align: center;">
        <div style="font-size: 14px; color: #666666;">Current Price</div>
        <div style="font-size: 28px; font-weight: bold; color: #28a745;">{{.CurrentPrice}}</div>
        <div style="font-size: 12px; color: #666666;">Your target was {{.TargetPrice}}</div>
      </div>
      <p style="margin-top: 20px;"><a href="{{.URL}}">Check offer now</a></p>
      <p>Prices may change at any time.</p>
    </div>
  </div>
</body>
</html>`))

func renderEmailBody(payload Payload) (string, error) {
	data := struct {
		ProductName  string
		StoreName    string
		CurrentPrice string
		TargetPrice  string
		URL          string
	}{
		ProductName:  payload.ProductName,
		StoreName:    payload.StoreName,
		CurrentPrice: "$ " + payload.CurrentPrice.StringFixed(2),
		TargetPrice:  "$ " + payload.TargetPrice.StringFixed(2),
		URL:          payload.URL,
	}

	var builder strings.Builder
	if err := emailTemplate.Execute(&builder, data); err != nil {
		return "", err
	}
	return builder.String(), nil
}

var _ Channel = (*EmailChannel)(nil)
