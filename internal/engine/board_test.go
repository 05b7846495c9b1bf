package engine

import (
	"errors"
	"slices"
	"testing"
)

func TestParseTile(t *testing.T) {
	valid := []string{"1A", "9L", "5F", "3C"}
	for _, raw := range valid {
		if _, _, _, err := ParseTile(raw); err != nil {
			t.Fatalf("expected %q to parse: %v", raw, err)
		}
	}

	invalid := []string{"", "0A", "10A", "1M", "A1", "1a", "5", "5FF"}
	for _, raw := range invalid {
		_, _, _, err := ParseTile(raw)
		if !errors.Is(err, ErrInvalidCoordinate) {
			t.Fatalf("expected %q to fail with invalid coordinate, got %v", raw, err)
		}
	}
}

func TestAdjacentTiles(t *testing.T) {
	tests := []struct {
		tile TileID
		want []TileID
	}{
		{tile: "1A", want: []TileID{"2A", "1B"}},
		{tile: "9L", want: []TileID{"8L", "9K"}},
		{tile: "5F", want: []TileID{"4F", "6F", "5E", "5G"}},
		{tile: "1F", want: []TileID{"2F", "1E", "1G"}},
	}
	for _, tc := range tests {
		got, err := AdjacentTiles(tc.tile)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.tile, err)
		}
		if !slices.Equal(got, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.tile, got, tc.want)
		}
	}

	if _, err := AdjacentTiles("0Z"); !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("expected invalid coordinate, got %v", err)
	}
}

func TestAllTiles(t *testing.T) {
	all := AllTiles()
	if len(all) != BoardRows*BoardCols {
		t.Fatalf("got %d tiles want %d", len(all), BoardRows*BoardCols)
	}
	if all[0] != "1A" || all[len(all)-1] != "9L" {
		t.Fatalf("unexpected ordering: first=%s last=%s", all[0], all[len(all)-1])
	}
}
