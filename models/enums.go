package models

import (
	"strings"
)

type Sector string

const (
	SectorWater        Sector = "water"
	SectorSanitation   Sector = "sanitation"
	SectorSwm          Sector = "swm"
	SectorRejuvenation Sector = "rejuvenation"
	SectorOthers       Sector = "others"
)

var sectors = []Sector{SectorWater, SectorSanitation, SectorSwm, SectorRejuvenation, SectorOthers}

func (s Sector) IsValid() bool {
	for _, v := range sectors {
		if v == s {
			return true
		}
	}
	return false
}

// ParseSector is case-insensitive and trims surrounding space.
func ParseSector(raw string) (Sector, bool) {
	s := Sector(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.IsValid()
}

type GrantType string

const (
	GrantTypeTied    GrantType = "tied"
	GrantTypeUntied  GrantType = "untied"
	GrantTypeAmbient GrantType = "ambient"
)

func (g GrantType) IsValid() bool {
	switch g {
	case GrantTypeTied, GrantTypeUntied, GrantTypeAmbient:
		return true
	}
	return false
}

func ParseGrantType(raw string) (GrantType, bool) {
	g := GrantType(strings.ToLower(strings.TrimSpace(raw)))
	return g, g.IsValid()
}

type CityType string

const (
	CityTypeMillionPlus CityType = "million-plus"
	CityTypeNonMillion  CityType = "non-million"
)

func (c CityType) IsValid() bool {
	return c == CityTypeMillionPlus || c == CityTypeNonMillion
}

func ParseCityType(raw string) (CityType, bool) {
	c := CityType(strings.ToLower(strings.TrimSpace(raw)))
	return c, c.IsValid()
}

// YesNo backs tender_floated and project_completion_status.
type YesNo string

const (
	Yes YesNo = "yes"
	No  YesNo = "no"
)

func ParseYesNo(raw string) (YesNo, bool) {
	switch YesNo(strings.ToLower(strings.TrimSpace(raw))) {
	case Yes:
		return Yes, true
	case No:
		return No, true
	}
	return "", false
}
