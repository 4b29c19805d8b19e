package models

// TimeSlot is a named time of day offered for booking. IsAvailable is derived
// by the availability ledger for a specific date and never stored.
type TimeSlot struct {
	ID          string `json:"id" yaml:"id"`
	TimeLabel   string `json:"time_label" yaml:"time_label"`
	IsAvailable bool   `json:"is_available" yaml:"-"`
}

type NewsItem struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Tag         string `json:"tag" yaml:"tag"`
	ImageURL    string `json:"image_url" yaml:"image_url"`
}

// ClubRates holds hourly court rates and the flat guest access fee.
type ClubRates struct {
	Member    float64 `json:"member" yaml:"member"`
	NonMember float64 `json:"non_member" yaml:"non_member"`
	GuestFee  float64 `json:"guest_fee" yaml:"guest_fee"`
}

func DefaultRates() ClubRates {
	return ClubRates{Member: MemberRate, NonMember: NonMemberRate, GuestFee: GuestFee}
}

// DefaultSlots is the daily slot template offered when no catalog overrides it.
func DefaultSlots() []TimeSlot {
	return []TimeSlot{
		{ID: "1", TimeLabel: "07:00 AM"},
		{ID: "2", TimeLabel: "08:30 AM"},
		{ID: "3", TimeLabel: "10:00 AM"},
		{ID: "4", TimeLabel: "11:30 AM"},
		{ID: "5", TimeLabel: "01:00 PM"},
		{ID: "6", TimeLabel: "02:30 PM"},
		{ID: "7", TimeLabel: "04:00 PM"},
		{ID: "8", TimeLabel: "05:30 PM"},
	}
}

func DefaultNews() []NewsItem {
	return []NewsItem{
		{
			ID:          "n1",
			Title:       "New Surface on Court 4!",
			Description: "We have upgraded court 4 with high-traction professional grade surface.",
			Tag:         "Facility",
			ImageURL:    "https://picsum.photos/seed/court/400/300",
		},
		{
			ID:          "n2",
			Title:       "Saturday Social Mixer",
			Description: "Join us for refreshments and doubles round-robin this weekend.",
			Tag:         "Event",
			ImageURL:    "https://picsum.photos/seed/social/400/300",
		},
		{
			ID:          "n3",
			Title:       "Youth Training Program",
			Description: "Registration is now open for our summer junior championship camp.",
			Tag:         "Training",
			ImageURL:    "https://picsum.photos/seed/kids/400/300",
		},
	}
}

// FindSlot looks a slot up by its label.
func FindSlot(slots []TimeSlot, timeLabel string) (TimeSlot, bool) {
	for _, s := range slots {
		if s.TimeLabel == timeLabel {
			return s, true
		}
	}
	return TimeSlot{}, false
}
