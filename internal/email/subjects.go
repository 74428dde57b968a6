package email

var subjects = map[string]map[string]string{
	"verification_code": {
		"en": "Your verification code",
		"fr": "Votre code de vérification",
	},
	"recovery": {
		"en": "Finish setting up your fleet account",
		"fr": "Terminez la configuration de votre compte flotte",
	},
	"nurture_first": {
		"en": "Your fleet setup is waiting for you",
		"fr": "Votre configuration de flotte vous attend",
	},
	"nurture_final": {
		"en": "Last chance to pick up where you left off",
		"fr": "Dernière chance de reprendre où vous en étiez",
	},
	"booking_reminder": {
		"en": "Your demo is tomorrow",
		"fr": "Votre démonstration a lieu demain",
	},
}

// subjectFor falls back to English for unknown locales.
func subjectFor(template, locale string) string {
	byLocale, ok := subjects[template]
	if !ok {
		return ""
	}
	if subject, ok := byLocale[locale]; ok {
		return subject
	}
	return byLocale["en"]
}
