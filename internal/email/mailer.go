package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"mosaic/internal/domain"
)

//go:embed templates/*/*.tmpl
var templateFS embed.FS

// Template names.
const (
	TemplateWelcome               = "welcome"
	TemplateSubscriptionActivated = "subscription_activated"
	TemplateSubscriptionCanceled  = "subscription_canceled"
	TemplatePaymentFailed         = "payment_failed"
	TemplateAccessEnded           = "access_ended"
)

var templateNames = []string{
	TemplateWelcome,
	TemplateSubscriptionActivated,
	TemplateSubscriptionCanceled,
	TemplatePaymentFailed,
	TemplateAccessEnded,
}

// Locales lists the supported template locales; the first is the fallback.
var Locales = []language.Tag{language.English, language.Spanish}

var localeMatcher = language.NewMatcher(Locales)

// MatchLocale returns the supported locale closest to raw, "en" when none is.
func MatchLocale(raw string) string {
	tag, err := language.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Locales[0].String()
	}
	_, index, confidence := localeMatcher.Match(tag)
	if confidence == language.No {
		return Locales[0].String()
	}
	return Locales[index].String()
}

type localized struct {
	text *texttemplate.Template
	html *htmltemplate.Template
}

type MailerOptions struct {
	From      string
	AppName   string
	PublicURL string
	Logger    zerolog.Logger
	// OnSend observes every delivery attempt by template name.
	OnSend func(template string, err error)
}

// Mailer renders templates in the recipient's locale and hands them to a Sender.
type Mailer struct {
	sender    Sender
	from      string
	appName   string
	publicURL string
	logger    zerolog.Logger
	onSend    func(template string, err error)
	templates map[string]map[string]localized
}

func NewMailer(sender Sender, opts MailerOptions) (*Mailer, error) {
	if sender == nil {
		return nil, fmt.Errorf("email sender is required")
	}
	if strings.TrimSpace(opts.From) == "" {
		return nil, fmt.Errorf("email from address is required")
	}
	appName := opts.AppName
	if appName == "" {
		appName = "Mosaic"
	}
	templates := map[string]map[string]localized{}
	for _, tag := range Locales {
		locale := tag.String()
		templates[locale] = map[string]localized{}
		for _, name := range templateNames {
			path := fmt.Sprintf("templates/%s/%s.tmpl", locale, name)
			text, err := texttemplate.ParseFS(templateFS, path)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			html, err := htmltemplate.ParseFS(templateFS, path)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			templates[locale][name] = localized{text: text, html: html}
		}
	}
	return &Mailer{
		sender:    sender,
		from:      opts.From,
		appName:   appName,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
		logger:    opts.Logger.With().Str("component", "mailer").Logger(),
		onSend:    opts.OnSend,
		templates: templates,
	}, nil
}

// Data is the template context. Unused fields render empty.
type Data struct {
	Name         string
	AppName      string
	PlanName     string
	AccessUntil  string
	InvoiceURL   string
	DashboardURL string
	BillingURL   string
	PricingURL   string
}

// Render produces the message for a template in locale without sending it.
func (m *Mailer) Render(name, locale string, data Data) (Message, error) {
	locale = MatchLocale(locale)
	tpl, ok := m.templates[locale][name]
	if !ok {
		return Message{}, fmt.Errorf("unknown email template %q", name)
	}
	data.AppName = m.appName
	data.DashboardURL = m.publicURL + "/dashboard"
	data.BillingURL = m.publicURL + "/dashboard/billing"
	data.PricingURL = m.publicURL + "/pricing"

	var subject, text, html bytes.Buffer
	if err := tpl.text.ExecuteTemplate(&subject, "subject", data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := tpl.text.ExecuteTemplate(&text, "text", data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", name, err)
	}
	if err := tpl.html.ExecuteTemplate(&html, "html", data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", name, err)
	}
	return Message{
		From:    m.from,
		Subject: strings.TrimSpace(subject.String()),
		Text:    strings.TrimSpace(text.String()) + "\n",
		HTML:    strings.TrimSpace(html.String()),
		Tags:    map[string]string{"template": name, "locale": locale},
	}, nil
}

func (m *Mailer) send(ctx context.Context, profile domain.Profile, name string, data Data) error {
	if strings.TrimSpace(profile.Email) == "" {
		return fmt.Errorf("profile %s has no email", profile.ID)
	}
	data.Name = displayName(profile)
	msg, err := m.Render(name, profile.Locale, data)
	if err != nil {
		return err
	}
	msg.To = []string{profile.Email}
	id, err := m.sender.Send(ctx, msg)
	if m.onSend != nil {
		m.onSend(name, err)
	}
	if err != nil {
		return fmt.Errorf("send %s: %w", name, err)
	}
	m.logger.Info().Str("user_id", profile.ID).Str("template", name).Str("message_id", id).Msg("email sent")
	return nil
}

func (m *Mailer) Welcome(ctx context.Context, profile domain.Profile) error {
	return m.send(ctx, profile, TemplateWelcome, Data{})
}

func (m *Mailer) SubscriptionActivated(ctx context.Context, profile domain.Profile, plan domain.Plan) error {
	return m.send(ctx, profile, TemplateSubscriptionActivated, Data{PlanName: plan.Name})
}

func (m *Mailer) SubscriptionCanceled(ctx context.Context, profile domain.Profile, plan domain.Plan, accessUntil time.Time) error {
	return m.send(ctx, profile, TemplateSubscriptionCanceled, Data{
		PlanName:    plan.Name,
		AccessUntil: formatDate(accessUntil, MatchLocale(profile.Locale)),
	})
}

func (m *Mailer) PaymentFailed(ctx context.Context, profile domain.Profile, invoiceURL string) error {
	return m.send(ctx, profile, TemplatePaymentFailed, Data{InvoiceURL: invoiceURL})
}

func (m *Mailer) AccessEnded(ctx context.Context, profile domain.Profile, plan domain.Plan) error {
	return m.send(ctx, profile, TemplateAccessEnded, Data{PlanName: plan.Name})
}

func displayName(profile domain.Profile) string {
	if name := strings.TrimSpace(profile.FullName); name != "" {
		return name
	}
	local, _, _ := strings.Cut(profile.Email, "@")
	return local
}

var spanishMonths = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}

func formatDate(t time.Time, locale string) string {
	t = t.UTC()
	if locale == language.Spanish.String() {
		return fmt.Sprintf("%d de %s de %d", t.Day(), spanishMonths[t.Month()-1], t.Year())
	}
	return t.Format("January 2, 2006")
}
