package backend

import (
	"testing"
	"opacbridge/internal/opac"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var testDefaults = map[string]opac.MediaType{
	"0":      opac.MediaBook,
	"20":     opac.MediaDVD,
	"29":     opac.MediaAudiobook,
	"buch01": opac.MediaBook,
	"g":      opac.MediaEbook,
}

func TestClassify(t *testing.T) {
	classifier := NewClassifier(nil, testDefaults)

	testCases := []struct {
		key      string
		expected opac.MediaType
	}{
		{key: "20_dvd_video.gif", expected: opac.MediaDVD},
		{key: "/opac/img/20_DVD_Video.GIF", expected: opac.MediaDVD},
		{key: "29.jpg", expected: opac.MediaAudiobook},
		{key: "BUCH01.png", expected: opac.MediaBook},
		{key: "g", expected: opac.MediaEbook},
		{key: "zz99", expected: opac.MediaUnknown},
		{key: "", expected: opac.MediaUnknown},
		{key: "205_unbekannt.gif", expected: opac.MediaUnknown},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, classifier.Classify(tc.key), tc.key)
	}
}

func TestClassifyOverridesFirst(t *testing.T) {
	overrides, invalid := OverridesFromConfig(map[string]string{
		"20_dvd_video.gif": "BLURAY",
		"29":               "MP3",
		"broken":           "HOLOGRAM",
	})
	require.Equal(t, []string{"broken"}, invalid)

	classifier := NewClassifier(overrides, testDefaults)
	require.Equal(t, opac.MediaBluray, classifier.Classify("20_dvd_video.gif"))
	require.Equal(t, opac.MediaDVD, classifier.Classify("20_other.gif"))
	require.Equal(t, opac.MediaMP3, classifier.Classify("29_hoerbuch.gif"))
}

func TestClassifyNeverPanics(t *testing.T) {
	classifier := NewClassifier(nil, testDefaults)
	rapid.Check(t, func(t *rapid.T) {
		key := rapid.String().Draw(t, "key")
		got := classifier.Classify(key)
		if got.String() == "" {
			t.Fatalf("classified %q into an unnamed media type", key)
		}
	})
}
