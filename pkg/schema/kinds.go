package schema

// Kind names.
const (
	KindEvent       = "event"
	KindSlide       = "slide"
	KindPoster      = "poster"
	KindRecruitment = "recruitment"
	KindHighlight   = "highlight"
)

// Event is a campus event with a cover image and registration details.
var Event = &Schema{
	Kind:       KindEvent,
	Label:      "Events",
	Collection: "events",
	Fields: []FieldSpec{
		{Name: "title", Label: "Title", Type: FieldText, Required: true},
		{Name: "description", Label: "Description", Type: FieldLongText, Required: true},
		{Name: "fee", Label: "Fee", Type: FieldNumber, Required: true, Default: float64(0)},
		{Name: "imageUrl", Label: "Image", Type: FieldMedia, Required: true},
		{Name: "startDate", Label: "Start Date", Type: FieldDateTime, Required: true},
		{Name: "endDate", Label: "End Date", Type: FieldDateTime, Required: true},
		{Name: "maxParticipants", Label: "Max Participants", Type: FieldInteger, Required: true, Default: 0},
		{Name: "registrationDeadline", Label: "Registration Deadline", Type: FieldDateTime, Required: true},
		{Name: "registrationRequired", Label: "Registration Required", Type: FieldBool},
		{Name: "sheet", Label: "Sheet URL", Type: FieldURL},
		{Name: "slug", Label: "Slug", Type: FieldText, Required: true},
		{Name: "status", Label: "Status", Type: FieldText, Required: true},
		{Name: "venue", Label: "Venue", Type: FieldText, Required: true},
	},
	TitleField:    "title",
	MediaField:    "imageUrl",
	MediaRequired: true,
	LegacyPath:    "/events",
}

// Slide is a homepage carousel slide.
var Slide = &Schema{
	Kind:       KindSlide,
	Label:      "Slides",
	Collection: "homepageSlides",
	Fields: []FieldSpec{
		{Name: "title", Label: "Title", Type: FieldText, Required: true},
		{Name: "imageUrl", Label: "Image", Type: FieldMedia, Required: true},
		{Name: "order", Label: "Order", Type: FieldInteger, Default: 0},
		{Name: "active", Label: "Active", Type: FieldBool},
	},
	TitleField:    "title",
	MediaField:    "imageUrl",
	MediaRequired: true,
	OrderField:    "order",
	ActiveField:   "active",
	LegacyPath:    "/events/slide",
}

// Poster links a poster image to a sign-up form. The collection keeps the
// capitalised field names the mobile app already reads.
var Poster = &Schema{
	Kind:       KindPoster,
	Label:      "Posters",
	Collection: "Posters",
	Fields: []FieldSpec{
		{Name: "Title", Label: "Title", Type: FieldText, Required: true},
		{Name: "FormsLink", Label: "Link", Type: FieldURL, Required: true},
		{Name: "Image", Label: "Image", Type: FieldMedia, Required: true},
		{Name: "Active", Label: "Active", Type: FieldBool},
	},
	TitleField:    "Title",
	MediaField:    "Image",
	MediaRequired: true,
	ActiveField:   "Active",
}

// Recruitment is a club recruitment link.
var Recruitment = &Schema{
	Kind:       KindRecruitment,
	Label:      "Recruitments",
	Collection: "recruitments",
	Fields: []FieldSpec{
		{Name: "title", Label: "Title", Type: FieldText, Required: true},
		{Name: "url", Label: "URL", Type: FieldURL, Required: true},
	},
	TitleField: "title",
	LegacyPath: "/recruitments",
}

// Highlight is a featured story shown on the home screen.
var Highlight = &Schema{
	Kind:       KindHighlight,
	Label:      "Highlights",
	Collection: "highlights",
	Fields: []FieldSpec{
		{Name: "title", Label: "Title", Type: FieldText, Required: true},
		{Name: "description", Label: "Description", Type: FieldLongText},
		{Name: "link", Label: "Link", Type: FieldURL},
		{Name: "imageUrl", Label: "Image", Type: FieldMedia, Required: true},
		{Name: "order", Label: "Order", Type: FieldInteger},
	},
	TitleField:    "title",
	MediaField:    "imageUrl",
	MediaRequired: true,
	OrderField:    "order",
}

// All returns every entity kind in dashboard tab order.
func All() []*Schema {
	return []*Schema{Event, Slide, Poster, Recruitment, Highlight}
}

// Lookup returns the schema registered under kind.
func Lookup(kind string) (*Schema, bool) {
	for _, s := range All() {
		if s.Kind == kind {
			return s, true
		}
	}
	return nil, false
}
