package sisis

import (
	"opacbridge/internal/opac"
)

// DefaultMediaTypes maps the icon names SISIS installations commonly use,
// keys are normalized as backend.NormalizeMediaKey does.
func DefaultMediaTypes() map[string]opac.MediaType {
	return map[string]opac.MediaType{
		"g":      opac.MediaEbook,
		"d":      opac.MediaCD,
		"0":      opac.MediaBook,
		"2":      opac.MediaBook,
		"7":      opac.MediaCDMusic,
		"8":      opac.MediaCDMusic,
		"12":     opac.MediaAudioCassette,
		"13":     opac.MediaCD,
		"15":     opac.MediaDVD,
		"16":     opac.MediaCD,
		"17":     opac.MediaMovie,
		"18":     opac.MediaMovie,
		"19":     opac.MediaMovie,
		"20":     opac.MediaDVD,
		"21":     opac.MediaScoreMusic,
		"22":     opac.MediaBoardgame,
		"26":     opac.MediaCD,
		"27":     opac.MediaCD,
		"29":     opac.MediaAudiobook,
		"37":     opac.MediaCD,
		"46":     opac.MediaGameConsoleNintendo,
		"56":     opac.MediaEbook,
		"96":     opac.MediaEbook,
		"97":     opac.MediaEbook,
		"99":     opac.MediaEbook,
		"eb":     opac.MediaEbook,
		"buch01": opac.MediaBook,
		"buch02": opac.MediaPackageBooks,
		"buch03": opac.MediaBook,
		"buch04": opac.MediaPackageBooks,
		"buch05": opac.MediaPackageBooks,
	}
}
