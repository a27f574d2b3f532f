package domain

type PianoStatus string

const (
	PianoNormal    PianoStatus = "normal"
	PianoProposed  PianoStatus = "proposed"
	PianoTop       PianoStatus = "top"
	PianoCompleted PianoStatus = "completed"
)

// ValidPianoStatuses is the canonical set of accepted piano status strings.
var ValidPianoStatuses = map[PianoStatus]bool{
	PianoNormal: true, PianoProposed: true, PianoTop: true, PianoCompleted: true,
}

type PianoType string

const (
	TypeGrand        PianoType = "grand"
	TypeDigitalGrand PianoType = "digital_grand"
	TypeUpright      PianoType = "upright"
)

// ValidPianoTypes is the canonical set of accepted piano type strings.
var ValidPianoTypes = map[PianoType]bool{
	TypeGrand: true, TypeDigitalGrand: true, TypeUpright: true,
}

type UsageCategory string

const (
	UsagePiano         UsageCategory = "piano"
	UsageAccompaniment UsageCategory = "accompaniment"
	UsagePractice      UsageCategory = "practice"
	UsageConcert       UsageCategory = "concert"
	UsageTeaching      UsageCategory = "teaching"
	UsageLeisure       UsageCategory = "leisure"
)

// UsageCategories lists the closed usage vocabulary in display order.
var UsageCategories = []UsageCategory{
	UsagePiano, UsageAccompaniment, UsagePractice, UsageConcert, UsageTeaching, UsageLeisure,
}

// ParseUsage validates a usage string. The empty string maps to nil (no usage).
func ParseUsage(s string) (*UsageCategory, error) {
	if s == "" {
		return nil, nil
	}
	for _, u := range UsageCategories {
		if string(u) == s {
			return &u, nil
		}
	}
	return nil, invalid("usage", "unknown usage category %q", s)
}

type CampaignStatus string

const (
	CampaignPlanned   CampaignStatus = "planned"
	CampaignActive    CampaignStatus = "active"
	CampaignArchived  CampaignStatus = "archived"
	CampaignCompleted CampaignStatus = "completed"
)

// Category is the display category derived by ResolveCategory.
type Category string

const (
	CategoryCompleted Category = "completed"
	CategoryTop       Category = "top"
	CategoryProposed  Category = "proposed"
	CategoryNormal    Category = "normal"
)

// OverlayField names the free-text overlay fields edited through the
// debounced writer.
type OverlayField string

const (
	FieldAssignmentNote OverlayField = "assignment_note"
	FieldWorkNote       OverlayField = "work_note"
	FieldObservations   OverlayField = "observations"
)
