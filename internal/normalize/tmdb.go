package normalize

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"github.com/reelfeed/reelfeed/internal/domain"
)

// maxCast bounds the top-billed credits kept on a document.
const maxCast = 10

// Raw TMDB payload types (internal)

type rawGenre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type rawCast struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Character string `json:"character"`
	Order     int    `json:"order"`
}

type rawCredits struct {
	Cast []rawCast `json:"cast"`
}

type rawAltTitle struct {
	Title string `json:"title"`
}

type rawMovie struct {
	ID               int64      `json:"id"`
	IMDBID           string     `json:"imdb_id"`
	Title            string     `json:"title"`
	OriginalTitle    string     `json:"original_title"`
	Overview         string     `json:"overview"`
	PosterPath       string     `json:"poster_path"`
	BackdropPath     string     `json:"backdrop_path"`
	ReleaseDate      string     `json:"release_date"`
	Genres           []rawGenre `json:"genres"`
	Popularity       float64    `json:"popularity"`
	VoteAverage      float64    `json:"vote_average"`
	VoteCount        int        `json:"vote_count"`
	Status           string     `json:"status"`
	OriginalLanguage string     `json:"original_language"`
	Adult            bool       `json:"adult"`
	Credits          rawCredits `json:"credits"`
	AltTitles        struct {
		Titles []rawAltTitle `json:"titles"`
	} `json:"alternative_titles"`
}

type rawTV struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	OriginalName     string     `json:"original_name"`
	Overview         string     `json:"overview"`
	PosterPath       string     `json:"poster_path"`
	BackdropPath     string     `json:"backdrop_path"`
	FirstAirDate     string     `json:"first_air_date"`
	Genres           []rawGenre `json:"genres"`
	Popularity       float64    `json:"popularity"`
	VoteAverage      float64    `json:"vote_average"`
	VoteCount        int        `json:"vote_count"`
	Status           string     `json:"status"`
	OriginalLanguage string     `json:"original_language"`
	Adult            bool       `json:"adult"`
	Credits          rawCredits `json:"credits"`
	AltTitles        struct {
		Results []rawAltTitle `json:"results"`
	} `json:"alternative_titles"`
	ExternalIDs struct {
		IMDBID string `json:"imdb_id"`
		TVDBID int64  `json:"tvdb_id"`
	} `json:"external_ids"`
}

type rawPerson struct {
	ID                 int64    `json:"id"`
	IMDBID             string   `json:"imdb_id"`
	Name               string   `json:"name"`
	AlsoKnownAs        []string `json:"also_known_as"`
	Biography          string   `json:"biography"`
	ProfilePath        string   `json:"profile_path"`
	Birthday           string   `json:"birthday"`
	KnownForDepartment string   `json:"known_for_department"`
	Popularity         float64  `json:"popularity"`
	Adult              bool     `json:"adult"`
}

func mapTMDBMovie(raw []byte) (mapped, bool) {
	var p rawMovie
	if err := json.Unmarshal(raw, &p); err != nil {
		return mapped{}, false
	}
	genres := genreNames(p.Genres)
	doc := domain.Document{
		Display: domain.DisplayFields{
			Title:         strings.TrimSpace(p.Title),
			OriginalTitle: strings.TrimSpace(p.OriginalTitle),
			Overview:      strings.TrimSpace(p.Overview),
			PosterPath:    p.PosterPath,
			BackdropPath:  p.BackdropPath,
			ReleaseDate:   p.ReleaseDate,
			Genres:        genres,
			Cast:          topCast(p.Credits.Cast),
		},
		Popularity:  p.Popularity,
		Rating:      p.VoteAverage,
		VoteCount:   p.VoteCount,
		ReleaseYear: yearOf(p.ReleaseDate),
		Status:      strings.ToLower(strings.TrimSpace(p.Status)),
		Language:    LanguageCode(p.OriginalLanguage),
		Adult:       p.Adult,
	}
	alts := make([]string, 0, len(p.AltTitles.Titles))
	for _, t := range p.AltTitles.Titles {
		alts = append(alts, t.Title)
	}
	return mapped{
		doc:      doc,
		sourceID: formatID(p.ID),
		altIDs:   altIDs("imdb", p.IMDBID),
		alts:     alts,
	}, true
}

func mapTMDBTV(raw []byte) (mapped, bool) {
	var p rawTV
	if err := json.Unmarshal(raw, &p); err != nil {
		return mapped{}, false
	}
	doc := domain.Document{
		Display: domain.DisplayFields{
			Title:         strings.TrimSpace(p.Name),
			OriginalTitle: strings.TrimSpace(p.OriginalName),
			Overview:      strings.TrimSpace(p.Overview),
			PosterPath:    p.PosterPath,
			BackdropPath:  p.BackdropPath,
			ReleaseDate:   p.FirstAirDate,
			Genres:        genreNames(p.Genres),
			Cast:          topCast(p.Credits.Cast),
		},
		Popularity:  p.Popularity,
		Rating:      p.VoteAverage,
		VoteCount:   p.VoteCount,
		ReleaseYear: yearOf(p.FirstAirDate),
		Status:      strings.ToLower(strings.TrimSpace(p.Status)),
		Language:    LanguageCode(p.OriginalLanguage),
		Adult:       p.Adult,
	}
	alts := make([]string, 0, len(p.AltTitles.Results))
	for _, t := range p.AltTitles.Results {
		alts = append(alts, t.Title)
	}
	ids := altIDs("imdb", p.ExternalIDs.IMDBID)
	if p.ExternalIDs.TVDBID > 0 {
		ids["tvdb"] = formatID(p.ExternalIDs.TVDBID)
	}
	return mapped{
		doc:      doc,
		sourceID: formatID(p.ID),
		altIDs:   ids,
		alts:     alts,
	}, true
}

func mapTMDBPerson(raw []byte) (mapped, bool) {
	var p rawPerson
	if err := json.Unmarshal(raw, &p); err != nil {
		return mapped{}, false
	}
	doc := domain.Document{
		Display: domain.DisplayFields{
			Title:       strings.TrimSpace(p.Name),
			Overview:    strings.TrimSpace(p.Biography),
			ProfilePath: p.ProfilePath,
			ReleaseDate: p.Birthday,
			KnownFor:    p.KnownForDepartment,
		},
		Popularity: p.Popularity,
		Adult:      p.Adult,
	}
	return mapped{
		doc:      doc,
		sourceID: formatID(p.ID),
		altIDs:   altIDs("imdb", p.IMDBID),
		alts:     p.AlsoKnownAs,
	}, true
}

func genreNames(raw []rawGenre) []string {
	var out []string
	for _, g := range raw {
		if name := strings.TrimSpace(g.Name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func topCast(raw []rawCast) []domain.CastMember {
	if len(raw) == 0 {
		return nil
	}
	cast := slices.Clone(raw)
	slices.SortStableFunc(cast, func(a, b rawCast) int { return a.Order - b.Order })
	if len(cast) > maxCast {
		cast = cast[:maxCast]
	}
	out := make([]domain.CastMember, 0, len(cast))
	for _, c := range cast {
		out = append(out, domain.CastMember{
			SourceID:  formatID(c.ID),
			Name:      c.Name,
			Character: c.Character,
			Order:     c.Order,
		})
	}
	return out
}

func formatID(id int64) string {
	if id <= 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func altIDs(system, value string) map[string]string {
	ids := map[string]string{}
	if v := strings.TrimSpace(value); v != "" {
		ids[system] = v
	}
	return ids
}

// yearOf extracts the year from a YYYY-MM-DD date, returning 0 when absent.
func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil || y <= 0 {
		return 0
	}
	return y
}
