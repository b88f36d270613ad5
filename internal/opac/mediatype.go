package opac

import (
	"fmt"
	"strings"
)

type MediaType int

const (
	MediaNone MediaType = iota
	MediaBook
	MediaCD
	MediaCDSoftware
	MediaCDMusic
	MediaDVD
	MediaMovie
	MediaAudiobook
	MediaPackage
	MediaGameConsole
	MediaEbook
	MediaScoreMusic
	MediaPackageBooks
	MediaUnknown
	MediaNewspaper
	MediaBoardgame
	MediaSchoolVersion
	MediaMap
	MediaBluray
	MediaAudioCassette
	MediaArt
	MediaMagazine
	MediaGameConsoleWii
	MediaGameConsoleNintendo
	MediaGameConsolePlaystation
	MediaGameConsoleXbox
	MediaLPRecord
	MediaMP3
	MediaURL
)

var mediaTypeNames = []string{
	MediaNone:                   "NONE",
	MediaBook:                   "BOOK",
	MediaCD:                     "CD",
	MediaCDSoftware:             "CD_SOFTWARE",
	MediaCDMusic:                "CD_MUSIC",
	MediaDVD:                    "DVD",
	MediaMovie:                  "MOVIE",
	MediaAudiobook:              "AUDIOBOOK",
	MediaPackage:                "PACKAGE",
	MediaGameConsole:            "GAME_CONSOLE",
	MediaEbook:                  "EBOOK",
	MediaScoreMusic:             "SCORE_MUSIC",
	MediaPackageBooks:           "PACKAGE_BOOKS",
	MediaUnknown:                "UNKNOWN",
	MediaNewspaper:              "NEWSPAPER",
	MediaBoardgame:              "BOARDGAME",
	MediaSchoolVersion:          "SCHOOL_VERSION",
	MediaMap:                    "MAP",
	MediaBluray:                 "BLURAY",
	MediaAudioCassette:          "AUDIO_CASSETTE",
	MediaArt:                    "ART",
	MediaMagazine:               "MAGAZINE",
	MediaGameConsoleWii:         "GAME_CONSOLE_WII",
	MediaGameConsoleNintendo:    "GAME_CONSOLE_NINTENDO",
	MediaGameConsolePlaystation: "GAME_CONSOLE_PLAYSTATION",
	MediaGameConsoleXbox:        "GAME_CONSOLE_XBOX",
	MediaLPRecord:               "LP_RECORD",
	MediaMP3:                    "MP3",
	MediaURL:                    "URL",
}

func (t MediaType) String() string {
	if t < 0 || int(t) >= len(mediaTypeNames) {
		return fmt.Sprintf("MediaType(%d)", int(t))
	}
	return mediaTypeNames[t]
}

func ParseMediaType(s string) (MediaType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range mediaTypeNames {
		if name == s {
			return MediaType(i), nil
		}
	}
	return MediaUnknown, fmt.Errorf("unknown media type %q", s)
}

func (t MediaType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *MediaType) UnmarshalText(b []byte) error {
	parsed, err := ParseMediaType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// LoanStatus is the traffic light shown next to a search result.
type LoanStatus int

const (
	StatusUnknown LoanStatus = iota
	// StatusRed means the item cannot be borrowed right now.
	StatusRed
	// StatusYellow means the item exists but is contended (lent, reserved, in transit).
	StatusYellow
	StatusGreen
)

func (s LoanStatus) String() string {
	switch s {
	case StatusRed:
		return "RED"
	case StatusYellow:
		return "YELLOW"
	case StatusGreen:
		return "GREEN"
	default:
		return "UNKNOWN"
	}
}

func (s LoanStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *LoanStatus) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "RED":
		*s = StatusRed
	case "YELLOW":
		*s = StatusYellow
	case "GREEN":
		*s = StatusGreen
	default:
		*s = StatusUnknown
	}
	return nil
}
