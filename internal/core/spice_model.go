package core

import (
	"sort"
	"time"
)

// Spice is a catalog entry batches are registered against.
type Spice struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	ScientificName  string `json:"scientific_name"`
	Category        string `json:"category"` // whole, ground, extract
	OriginRegion    string `json:"origin_region"`
	HarvestSeason   string `json:"harvest_season"`
	ShelfLifeMonths int    `json:"shelf_life_months"`
}

// ExpiryFrom returns the best-before date of produce packed at t, or nil when
// the spice has no recorded shelf life.
func (s Spice) ExpiryFrom(t time.Time) *time.Time {
	if s.ShelfLifeMonths <= 0 {
		return nil
	}
	exp := t.AddDate(0, s.ShelfLifeMonths, 0)
	return &exp
}

// Catalog is the read-only set of spices a ledger accepts.
type Catalog struct {
	byID map[int]Spice
}

func NewCatalog(spices ...Spice) *Catalog {
	c := &Catalog{byID: make(map[int]Spice, len(spices))}
	for _, s := range spices {
		c.byID[s.ID] = s
	}
	return c
}

// DefaultCatalog is the Kerala spice list every deployment starts with.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Spice{ID: 1, Name: "Black Pepper", ScientificName: "Piper nigrum", Category: "whole", OriginRegion: "Idukki, Kerala", HarvestSeason: "November-February", ShelfLifeMonths: 36},
		Spice{ID: 2, Name: "Cardamom", ScientificName: "Elettaria cardamomum", Category: "whole", OriginRegion: "Idukki, Kerala", HarvestSeason: "October-December", ShelfLifeMonths: 24},
		Spice{ID: 3, Name: "Cinnamon", ScientificName: "Cinnamomum verum", Category: "whole", OriginRegion: "Kollam, Kerala", HarvestSeason: "May-July", ShelfLifeMonths: 48},
		Spice{ID: 4, Name: "Cloves", ScientificName: "Syzygium aromaticum", Category: "whole", OriginRegion: "Kottayam, Kerala", HarvestSeason: "September-December", ShelfLifeMonths: 36},
		Spice{ID: 5, Name: "Nutmeg", ScientificName: "Myristica fragrans", Category: "whole", OriginRegion: "Thrissur, Kerala", HarvestSeason: "June-August", ShelfLifeMonths: 48},
		Spice{ID: 6, Name: "Turmeric", ScientificName: "Curcuma longa", Category: "ground", OriginRegion: "Erode, Kerala", HarvestSeason: "January-March", ShelfLifeMonths: 24},
		Spice{ID: 7, Name: "Ginger", ScientificName: "Zingiber officinale", Category: "whole", OriginRegion: "Kozhikode, Kerala", HarvestSeason: "December-February", ShelfLifeMonths: 12},
	)
}

// Spice looks up one catalog entry.
func (c *Catalog) Spice(id int) (Spice, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// List returns every spice ordered by id.
func (c *Catalog) List() []Spice {
	out := make([]Spice, 0, len(c.byID))
	for _, s := range c.byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
