package respawn

import (
	"errors"

	"github.com/google/uuid"
)

var ErrNoUserInfo = errors.New("response contains no user info")

// Response is the stryder user-getinfo json shape.
type Response struct {
	UserInfo *UserInfo `json:"userInfo"`
}

// UserInfo mirrors the upstream field names. The numbered cdata fields hold the banner and
// account state. Boolean flags are transmitted as 0/1 integers.
type UserInfo struct {
	UID          int64  `json:"uid"`
	Hardware     string `json:"hardware"`
	Name         string `json:"name"`
	BanReason    int    `json:"banReason"`
	BanSeconds   int    `json:"banSeconds"`
	RankScore    int    `json:"rankScore"`
	ArenaScore   int    `json:"arenaScore"`
	Online       int    `json:"online"`
	Joinable     int    `json:"joinable"`
	PartyFull    int    `json:"partyFull"`
	PartyInMatch int    `json:"partyInMatch"`

	Character       int `json:"cdata2"`
	CharacterSkin   int `json:"cdata3"`
	BannerFrame     int `json:"cdata4"`
	BannerStance    int `json:"cdata5"`
	Badge1          int `json:"cdata6"`
	Badge1Tier      int `json:"cdata7"`
	Badge2          int `json:"cdata8"`
	Badge2Tier      int `json:"cdata9"`
	Badge3          int `json:"cdata10"`
	Badge3Tier      int `json:"cdata11"`
	Tracker1        int `json:"cdata12"`
	Tracker1Value   int `json:"cdata13"`
	Tracker2        int `json:"cdata14"`
	Tracker2Value   int `json:"cdata15"`
	Tracker3        int `json:"cdata16"`
	Tracker3Value   int `json:"cdata17"`
	IntroQuip       int `json:"cdata18"`
	AccountLevel    int `json:"cdata23"`
	AccountProgress int `json:"cdata24"`
	PlayerInMatch   int `json:"cdata31"`
}

// Snapshot converts the wire record into a Snapshot captured at timestamp.
func (u UserInfo) Snapshot(platform Platform, timestamp int64) Snapshot {
	if parsed, ok := ParsePlatform(u.Hardware); ok {
		platform = parsed
	}

	return Snapshot{
		SnapshotID:      uuid.New(),
		UID:             u.UID,
		Platform:        platform,
		Timestamp:       timestamp,
		Name:            u.Name,
		Online:          u.Online != 0,
		Joinable:        u.Joinable != 0,
		PartyFull:       u.PartyFull != 0,
		PartyInMatch:    u.PartyInMatch != 0,
		InMatch:         u.PlayerInMatch != 0,
		RankScore:       u.RankScore,
		ArenaScore:      u.ArenaScore,
		AccountLevel:    u.AccountLevel,
		AccountProgress: u.AccountProgress,
		Character:       u.Character,
		CharacterSkin:   u.CharacterSkin,
		Frame:           u.BannerFrame,
		Stance:          u.BannerStance,
		IntroQuip:       u.IntroQuip,
		Badges: [TrackerSlots]Badge{
			{Code: u.Badge1, Tier: u.Badge1Tier},
			{Code: u.Badge2, Tier: u.Badge2Tier},
			{Code: u.Badge3, Tier: u.Badge3Tier},
		},
		Trackers: [TrackerSlots]Tracker{
			{Code: u.Tracker1, Value: u.Tracker1Value},
			{Code: u.Tracker2, Value: u.Tracker2Value},
			{Code: u.Tracker3, Value: u.Tracker3Value},
		},
		BanReason:  u.BanReason,
		BanSeconds: u.BanSeconds,
	}
}
