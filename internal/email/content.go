package email

import "time"

// copyFor holds per-locale headings and button labels. Subjects live in
// subjects.go. Unknown locales fall back to English.
type emailCopy struct {
	Heading    string
	Subheading string
	CTALabel   string
}

var copyTable = map[string]map[string]emailCopy{
	"verification_code": {
		"en": {Heading: "Confirm your email address", Subheading: "Enter this code in the signup wizard. It expires in 10 minutes."},
		"fr": {Heading: "Confirmez votre adresse e-mail", Subheading: "Saisissez ce code dans l'assistant d'inscription. Il expire dans 10 minutes."},
	},
	"recovery": {
		"en": {Heading: "You are almost there", Subheading: "Your fleet account setup is incomplete. Pick up right where you left off.", CTALabel: "Continue setup"},
		"fr": {Heading: "Vous y êtes presque", Subheading: "La configuration de votre compte flotte est incomplète. Reprenez là où vous en étiez.", CTALabel: "Continuer la configuration"},
	},
	"nurture_first": {
		"en": {Heading: "Your fleet setup is waiting", Subheading: "It only takes a few minutes to finish. Your progress has been saved.", CTALabel: "Resume setup"},
		"fr": {Heading: "Votre configuration vous attend", Subheading: "Il ne faut que quelques minutes pour terminer. Votre progression a été sauvegardée.", CTALabel: "Reprendre la configuration"},
	},
	"nurture_final": {
		"en": {Heading: "Last call", Subheading: "We will archive your saved progress soon. Finish your setup to keep it.", CTALabel: "Finish setup"},
		"fr": {Heading: "Dernier rappel", Subheading: "Votre progression sauvegardée sera bientôt archivée. Terminez votre configuration pour la conserver.", CTALabel: "Terminer la configuration"},
	},
	"booking_reminder": {
		"en": {Heading: "Your demo is coming up", Subheading: "A specialist will walk you through the platform.", CTALabel: "Confirm attendance"},
		"fr": {Heading: "Votre démonstration approche", Subheading: "Un spécialiste vous fera découvrir la plateforme.", CTALabel: "Confirmer ma présence"},
	},
}

func copyFor(template, locale string) emailCopy {
	byLocale, ok := copyTable[template]
	if !ok {
		return emailCopy{}
	}
	if c, ok := byLocale[locale]; ok {
		return c
	}
	return byLocale["en"]
}

func verificationCodeContent(locale, code string) (string, string, error) {
	c := copyFor("verification_code", locale)
	html, err := renderEmailTemplate("verification_code.html", verificationCodeEmailData{
		baseEmailData: baseEmailData{
			Title:      c.Heading,
			Heading:    c.Heading,
			Subheading: c.Subheading,
		},
		Code: code,
	})
	return subjectFor("verification_code", locale), html, err
}

func recoveryContent(locale, resumeURL string) (string, string, error) {
	c := copyFor("recovery", locale)
	html, err := renderEmailTemplate("recovery.html", recoveryEmailData{
		baseEmailData: baseEmailData{
			Title:      c.Heading,
			Heading:    c.Heading,
			Subheading: c.Subheading,
			CTALabel:   c.CTALabel,
			CTAURL:     resumeURL,
		},
	})
	return subjectFor("recovery", locale), html, err
}

func nurtureFirstContent(locale, resumeURL string) (string, string, error) {
	c := copyFor("nurture_first", locale)
	html, err := renderEmailTemplate("nurture_first.html", nurtureEmailData{
		baseEmailData: baseEmailData{
			Title:      c.Heading,
			Heading:    c.Heading,
			Subheading: c.Subheading,
			CTALabel:   c.CTALabel,
			CTAURL:     resumeURL,
		},
	})
	return subjectFor("nurture_first", locale), html, err
}

func nurtureFinalContent(locale, resumeURL string) (string, string, error) {
	c := copyFor("nurture_final", locale)
	html, err := renderEmailTemplate("nurture_final.html", nurtureEmailData{
		baseEmailData: baseEmailData{
			Title:      c.Heading,
			Heading:    c.Heading,
			Subheading: c.Subheading,
			CTALabel:   c.CTALabel,
			CTAURL:     resumeURL,
		},
	})
	return subjectFor("nurture_final", locale), html, err
}

func bookingReminderContent(locale string, slotAt time.Time, confirmURL, rescheduleURL string) (string, string, error) {
	c := copyFor("booking_reminder", locale)
	html, err := renderEmailTemplate("booking_reminder.html", bookingReminderEmailData{
		baseEmailData: baseEmailData{
			Title:      c.Heading,
			Heading:    c.Heading,
			Subheading: c.Subheading,
			CTALabel:   c.CTALabel,
			CTAURL:     confirmURL,
		},
		SlotFormatted: formatSlot(slotAt, locale),
		RescheduleURL: rescheduleURL,
	})
	return subjectFor("booking_reminder", locale), html, err
}
