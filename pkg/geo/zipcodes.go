// Package geo resolves German zip codes to coordinates from a bundled CSV.
package geo

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/apex/log"
)

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ZipCodes is a read-only zip code table loaded on first use.
type ZipCodes struct {
	path   string
	once   sync.Once
	table  map[string]Coordinates
	logger *log.Entry
}

func NewZipCodes(path string) *ZipCodes {
	return &ZipCodes{
		path:   path,
		logger: log.WithField("module", "geo"),
	}
}

// NewZipCodesFromReader builds the table from "zipcode,lat,lng" rows with a
// header line.
func NewZipCodesFromReader(r io.Reader) (*ZipCodes, error) {
	table, err := parse(r)
	if err != nil {
		return nil, err
	}
	z := &ZipCodes{table: table, logger: log.WithField("module", "geo")}
	z.once.Do(func() {})
	return z, nil
}

func (z *ZipCodes) load() {
	z.once.Do(func() {
		z.table = map[string]Coordinates{}
		f, err := os.Open(z.path)
		if err != nil {
			z.logger.Warnf("zip code table unavailable: %v", err)
			return
		}
		defer f.Close()

		table, err := parse(f)
		if err != nil {
			z.logger.Warnf("zip code table unreadable: %v", err)
			return
		}
		z.table = table
		z.logger.Infof("loaded %d zip codes", len(table))
	})
}

func parse(r io.Reader) (map[string]Coordinates, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	table := map[string]Coordinates{}
	header := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if header {
			header = false
			continue
		}
		if len(record) < 3 {
			continue
		}
		zip := strings.TrimSpace(record[0])
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		lng, errLng := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if zip == "" || errLat != nil || errLng != nil {
			continue
		}
		table[zip] = Coordinates{Latitude: lat, Longitude: lng}
	}
	return table, nil
}

func (z *ZipCodes) Lookup(zip string) (Coordinates, bool) {
	z.load()
	c, ok := z.table[zip]
	return c, ok
}

func (z *ZipCodes) Valid(zip string) bool {
	_, ok := z.Lookup(zip)
	return ok
}

func (z *ZipCodes) Len() int {
	z.load()
	return len(z.table)
}
