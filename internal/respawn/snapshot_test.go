package respawn_test

import (
	"strings"
	"testing"

	"github.com/apexstats/apex-tracker/internal/network/encoding"
	"github.com/apexstats/apex-tracker/internal/respawn"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDecodeTracker(t *testing.T) {
	cases := []struct {
		raw     int
		decoded int
	}{
		{raw: 2, decoded: 0},
		{raw: 102, decoded: 1},
		{raw: 150, decoded: 1},
		{raw: 123402, decoded: 1234},
		{raw: 0, decoded: -1},
		{raw: 1, decoded: -1},
		{raw: -98, decoded: -1},
		{raw: -99, decoded: -2},
		{raw: -198, decoded: -2},
	}

	for _, testCase := range cases {
		require.Equal(t, testCase.decoded, respawn.DecodeTracker(testCase.raw), "raw %d", testCase.raw)
	}

	require.Equal(t, 5, respawn.Tracker{Code: 1, Value: 502}.Decoded())
}

func TestParsePlatform(t *testing.T) {
	platform, ok := respawn.ParsePlatform("pc")
	require.True(t, ok)
	require.Equal(t, respawn.PlatformPC, platform)

	_, ok = respawn.ParsePlatform("dreamcast")
	require.False(t, ok)
}

func TestUserInfoSnapshot(t *testing.T) {
	const body = `{"userInfo": {
		"uid": "1000123456", "hardware": "PC", "name": "GoshDarnedHero",
		"banReason": 0, "banSeconds": 0, "rankScore": 4500, "arenaScore": 1200,
		"online": 1, "joinable": 0, "partyFull": 0, "partyInMatch": 1,
		"cdata2": 725342087, "cdata3": 11, "cdata4": 12, "cdata5": 13,
		"cdata6": 21, "cdata7": 1, "cdata8": 22, "cdata9": 2, "cdata10": 23, "cdata11": 3,
		"cdata12": 1409694078, "cdata13": 123402, "cdata14": 1905735931, "cdata15": 502,
		"cdata16": 0, "cdata17": 2, "cdata18": 99,
		"cdata23": 250, "cdata24": 42, "cdata31": 1
	}}`

	response, err := encoding.UnmarshalJSON[respawn.Response](strings.NewReader(body))
	require.NoError(t, err)
	require.NotNil(t, response.UserInfo)

	snapshot := response.UserInfo.Snapshot(respawn.PlatformPS4, 1633046400)
	require.NotEqual(t, uuid.Nil, snapshot.SnapshotID)
	require.Equal(t, int64(1000123456), snapshot.UID)
	require.Equal(t, respawn.PlatformPC, snapshot.Platform)
	require.Equal(t, int64(1633046400), snapshot.Timestamp)
	require.True(t, snapshot.Online)
	require.False(t, snapshot.Joinable)
	require.True(t, snapshot.PartyInMatch)
	require.True(t, snapshot.InMatch)
	require.Equal(t, 725342087, snapshot.Character)
	require.Equal(t, respawn.Badge{Code: 22, Tier: 2}, snapshot.Badges[1])
	require.Equal(t, respawn.Tracker{Code: 1409694078, Value: 123402}, snapshot.Trackers[0])
	require.Equal(t, 1234, snapshot.Trackers[0].Decoded())
	require.Equal(t, 250, snapshot.AccountLevel)
	require.Equal(t, 42, snapshot.AccountProgress)
}
