package engine

import (
	"fmt"
	"strings"
)

type ChainName string

const (
	Sackson     ChainName = "sackson"
	Tower       ChainName = "tower"
	Worldwide   ChainName = "worldwide"
	American    ChainName = "american"
	Festival    ChainName = "festival"
	Continental ChainName = "continental"
	Imperial    ChainName = "imperial"
)

type Tier string

const (
	TierBudget   Tier = "budget"
	TierMidrange Tier = "midrange"
	TierPremium  Tier = "premium"
)

type ChainInfo struct {
	Name        ChainName `json:"name"`
	DisplayName string    `json:"display_name"`
	Tier        Tier      `json:"tier"`
}

// ChainOrder is the fixed iteration order used wherever chains are walked
// or ties between chains need a deterministic resolution.
var ChainOrder = []ChainName{Sackson, Tower, Worldwide, American, Festival, Continental, Imperial}

var chainInfo = map[ChainName]ChainInfo{
	Sackson:     {Name: Sackson, DisplayName: "Sackson", Tier: TierBudget},
	Tower:       {Name: Tower, DisplayName: "Tower", Tier: TierBudget},
	Worldwide:   {Name: Worldwide, DisplayName: "Worldwide", Tier: TierMidrange},
	American:    {Name: American, DisplayName: "American", Tier: TierMidrange},
	Festival:    {Name: Festival, DisplayName: "Festival", Tier: TierMidrange},
	Continental: {Name: Continental, DisplayName: "Continental", Tier: TierPremium},
	Imperial:    {Name: Imperial, DisplayName: "Imperial", Tier: TierPremium},
}

func ParseChain(raw string) (ChainName, error) {
	name := ChainName(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := chainInfo[name]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownChain, raw)
	}
	return name, nil
}

func Info(name ChainName) (ChainInfo, bool) {
	info, ok := chainInfo[name]
	return info, ok
}

func (c ChainName) DisplayName() string {
	if info, ok := chainInfo[c]; ok {
		return info.DisplayName
	}
	return string(c)
}

func (c ChainName) Tier() Tier {
	return chainInfo[c].Tier
}

func chainRank(name ChainName) int {
	for i, c := range ChainOrder {
		if c == name {
			return i
		}
	}
	return len(ChainOrder)
}
