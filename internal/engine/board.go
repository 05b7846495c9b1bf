package engine

import (
	"fmt"
	"strconv"
)

const (
	BoardRows = 9
	BoardCols = 12
)

const columnLetters = "ABCDEFGHIJKL"

// TileID names a board cell as row number followed by column letter, e.g. "3C".
type TileID string

func NewTileID(row int, col byte) TileID {
	return TileID(strconv.Itoa(row) + string(col))
}

// ParseTile validates a tile id and returns its row (1..9) and column index (0..11).
func ParseTile(raw string) (TileID, int, int, error) {
	if len(raw) != 2 {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrInvalidCoordinate, raw)
	}
	row := int(raw[0] - '0')
	if row < 1 || row > BoardRows {
		return "", 0, 0, fmt.Errorf("%w: row out of range in %q", ErrInvalidCoordinate, raw)
	}
	col := -1
	for i := 0; i < len(columnLetters); i++ {
		if columnLetters[i] == raw[1] {
			col = i
			break
		}
	}
	if col < 0 {
		return "", 0, 0, fmt.Errorf("%w: column out of range in %q", ErrInvalidCoordinate, raw)
	}
	return TileID(raw), row, col, nil
}

func (t TileID) Valid() bool {
	_, _, _, err := ParseTile(string(t))
	return err == nil
}

// AllTiles lists every board cell in row-major order.
func AllTiles() []TileID {
	out := make([]TileID, 0, BoardRows*BoardCols)
	for row := 1; row <= BoardRows; row++ {
		for i := 0; i < BoardCols; i++ {
			out = append(out, NewTileID(row, columnLetters[i]))
		}
	}
	return out
}

// AdjacentTiles returns the orthogonal neighbours of a tile inside the grid.
func AdjacentTiles(id TileID) ([]TileID, error) {
	_, row, col, err := ParseTile(string(id))
	if err != nil {
		return nil, err
	}
	out := make([]TileID, 0, 4)
	if row > 1 {
		out = append(out, NewTileID(row-1, columnLetters[col]))
	}
	if row < BoardRows {
		out = append(out, NewTileID(row+1, columnLetters[col]))
	}
	if col > 0 {
		out = append(out, NewTileID(row, columnLetters[col-1]))
	}
	if col < BoardCols-1 {
		out = append(out, NewTileID(row, columnLetters[col+1]))
	}
	return out, nil
}

func neighbours(id TileID) []TileID {
	out, err := AdjacentTiles(id)
	if err != nil {
		return nil
	}
	return out
}
