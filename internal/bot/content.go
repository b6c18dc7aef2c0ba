package bot

import (
	"errors"
	"fmt"

	"github.com/jagmitg/botservice/pkg/config"
	"github.com/jagmitg/botservice/runtime/template"
)

// Content is the text the bot sends. Templates use {{name}} placeholders.
type Content struct {
	Intro        string
	IntroActions []string
	LUISNote     string
	Restart      string
	Fallback     string // {{intent}}

	PaymentPrompt   string
	PaymentActions  []string
	PaymentNoNLU    string
	SSPReply        string
	Helpful         string
	Glad            string
	Escalation      string // {{phone}}, {{hours}}
	EscalationPhone string
	EscalationHours string
	AnythingElse    string

	NamePrompt  string
	NameThanks  string // {{name}}
	AgeQuestion string
	AgeChoices  []string
	AgePrompt   string
	AgeRetry    string
	NotKept     string
}

// DefaultContent returns the SIPPI texts with the given escalation details.
// An empty phone or hours falls back to the service's published contact details.
func DefaultContent(phone, hours string) Content {
	if phone == "" {
		phone = config.DefaultEscalationPhone
	}
	if hours == "" {
		hours = config.DefaultEscalationHours
	}
	return Content{
		Intro: "Hi [username], I’m SIPPI the TVL chatbot. 🙂 \n \n " +
			"I’m here to answer your questions about the Simple Payment Plan.",
		IntroActions: []string{"Make a Payment", "Renew my TV licence", "Update my name, address or bank details"},
		LUISNote: "NOTE: LUIS is not configured. To enable all capabilities, add `LuisAppId`, " +
			"`LuisAPIKey` and `LuisAPIHostName` to the .env file.",
		Restart:  "What else can I do for you?",
		Fallback: "Sorry, I didn't get that. Please try asking in a different way (intent was {{intent}})",

		PaymentPrompt: "Ok, here are some of the ways that you can make a payment. \n \n " +
			"Please type a question below, or select one of the following options:",
		PaymentActions: []string{"Debit Card", "SSP Payment Card", "Cash", "Mobile App"},
		PaymentNoNLU:   "I can't look up payment questions at the moment.",
		SSPReply:       "debit card here",
		Helpful:        "Was this helpful?",
		Glad:           "Great, glad I could help.",
		Escalation: "Sorry I couldn't help with that. You can speak to one of our advisers on " +
			"{{phone}}, {{hours}}.",
		EscalationPhone: phone,
		EscalationHours: hours,
		AnythingElse:    "Is there anything else I can help you with?",

		NamePrompt:  "Please enter your name.",
		NameThanks:  "Thanks {{name}}.",
		AgeQuestion: "Do you want to give your age?",
		AgeChoices:  []string{"yes", "no"},
		AgePrompt:   "Please enter your age.",
		AgeRetry:    "The value entered must be greater than 0 and less than 150.",
		NotKept:     "Thanks. Your profile will not be kept.",
	}
}

// Validate checks that every template renders with the variables it is given
// and that the escalation details are set.
func (c Content) Validate() error {
	if c.EscalationPhone == "" || c.EscalationHours == "" {
		return errors.New("content escalation: phone and hours are required")
	}
	r := template.NewRenderer()
	checks := []struct {
		name string
		text string
		vars []string
	}{
		{"fallback", c.Fallback, []string{"intent"}},
		{"escalation", c.Escalation, []string{"phone", "hours"}},
		{"nameThanks", c.NameThanks, []string{"name"}},
	}
	for _, ch := range checks {
		vars := make(map[string]string, len(ch.vars))
		for _, v := range ch.vars {
			vars[v] = v
		}
		if _, err := r.Render(ch.text, vars); err != nil {
			return fmt.Errorf("content %s: %w", ch.name, err)
		}
	}
	if len(c.AgeChoices) != 2 {
		return fmt.Errorf("content ageChoices: want 2 choices, got %d", len(c.AgeChoices))
	}
	return nil
}

// fill never fails: user input and operator values may contain braces.
var fill = &template.Renderer{Lenient: true}

func (c Content) escalation() string {
	out, _ := fill.Render(c.Escalation, map[string]string{
		"phone": c.EscalationPhone,
		"hours": c.EscalationHours,
	})
	return out
}

func (c Content) nameThanks(name string) string {
	out, _ := fill.Render(c.NameThanks, map[string]string{"name": name})
	return out
}
