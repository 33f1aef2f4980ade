package models

import "gorm.io/gorm"

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

type Specialization string

const (
	SpecCriminal     Specialization = "criminal"
	SpecFamily       Specialization = "family"
	SpecCorporate    Specialization = "corporate"
	SpecCivil        Specialization = "civil"
	SpecImmigration  Specialization = "immigration"
	SpecIntellectual Specialization = "intellectual_property"
	SpecLabor        Specialization = "labor"
	SpecRealEstate   Specialization = "real_estate"
	SpecTax          Specialization = "tax"
	SpecOther        Specialization = "other"
)

var specializations = map[Specialization]bool{
	SpecCriminal: true, SpecFamily: true, SpecCorporate: true, SpecCivil: true,
	SpecImmigration: true, SpecIntellectual: true, SpecLabor: true,
	SpecRealEstate: true, SpecTax: true, SpecOther: true,
}

func (s Specialization) Valid() bool { return specializations[s] }

// LawyerApplication is a user's request for lawyer status together with the
// rate card clients are charged from once approved.
type LawyerApplication struct {
	gorm.Model
	UserID             uint              `gorm:"column:user_id;not null;index" json:"user_id"`
	BarNumber          string            `gorm:"column:bar_number;size:64;not null" json:"bar_number"`
	YearsOfExperience  int               `gorm:"column:years_of_experience;not null" json:"years_of_experience"`
	Specialization     Specialization    `gorm:"column:specialization;size:50;not null" json:"specialization"`
	Bio                string            `gorm:"column:bio;type:text" json:"bio,omitempty"`
	CertificationImage string            `gorm:"column:certification_image;size:500;not null" json:"certification_image"`
	PersonalImage      string            `gorm:"column:personal_image;size:500;not null" json:"personal_image"`
	HourlyRate         float64           `gorm:"column:hourly_rate;not null" json:"hourly_rate"`
	HalfHourlyRate     float64           `gorm:"column:half_hourly_rate;not null" json:"half_hourly_rate"`
	Status             ApplicationStatus `gorm:"column:status;size:20;not null;default:pending;index" json:"status"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// RateFor returns the price of a consultation of the given length.
func (a *LawyerApplication) RateFor(durationMinutes int) float64 {
	if durationMinutes == 30 {
		return a.HalfHourlyRate
	}
	return a.HourlyRate
}
