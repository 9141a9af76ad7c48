package campaign

// Option is a selectable wizard entry.
type Option struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Personas are the target audiences offered in wizard step 1.
var Personas = []Option{
	{ID: "students", Label: "Students", Description: "College & university students"},
	{ID: "parents", Label: "Parents", Description: "Parents with children"},
	{ID: "professionals", Label: "Professionals", Description: "Working professionals"},
	{ID: "seniors", Label: "Seniors", Description: "Adults 55+"},
	{ID: "general", Label: "General", Description: "General audience"},
}

// CampaignTypes are the campaign kinds offered in wizard step 2.
var CampaignTypes = []Option{
	{ID: "sale", Label: "Sale/Discount", Description: "Promote discounts & deals"},
	{ID: "event", Label: "Event", Description: "Announce events & workshops"},
	{ID: "update", Label: "Update", Description: "Share news & updates"},
	{ID: "reminder", Label: "Reminder", Description: "Appointment reminders"},
	{ID: "welcome", Label: "Welcome", Description: "Welcome new customers"},
}

// ValidPersona reports whether id names a known persona.
func ValidPersona(id string) bool {
	return containsOption(Personas, id)
}

// ValidCampaignType reports whether id names a known campaign type.
func ValidCampaignType(id string) bool {
	return containsOption(CampaignTypes, id)
}

func containsOption(options []Option, id string) bool {
	for _, opt := range options {
		if opt.ID == id {
			return true
		}
	}
	return false
}
