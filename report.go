package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"

	"krisha_scrooper/models"
	"krisha_scrooper/query"
)

// filterValue collects one filter flag into the shared raw map. Values are
// typed from their text so that FiltersFromMap can check kinds as it does
// for presets.
type filterValue struct {
	name   string
	toggle bool
	raw    map[string]any
}

func (v *filterValue) String() string {
	if v == nil || v.raw == nil {
		return ""
	}
	if val, ok := v.raw[v.name]; ok {
		return fmt.Sprint(val)
	}
	return ""
}

func (v *filterValue) Set(s string) error {
	if v.toggle {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		v.raw[v.name] = b
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		v.raw[v.name] = n
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		v.raw[v.name] = f
		return nil
	}
	v.raw[v.name] = s
	return nil
}

func (v *filterValue) IsBoolFlag() bool {
	return v.toggle
}

// registerFilterFlags adds one flag per search filter. The returned map is
// filled in as flags are parsed.
func registerFilterFlags(fs *flag.FlagSet) map[string]any {
	raw := map[string]any{}
	for _, name := range query.FilterNames() {
		v := &filterValue{name: name, toggle: query.IsToggle(name), raw: raw}
		fs.Var(v, name, "search filter "+name)
	}
	return raw
}

func printListings(w io.Writer, flats []models.Flat) {
	for _, f := range flats {
		fmt.Fprintln(w, f.URL())
		fmt.Fprintln(w, "Адрес:", f.Address)
		fmt.Fprintln(w, "Комнаты:", f.Rooms)
		fmt.Fprintln(w, "Площадь:", strconv.FormatFloat(f.Area, 'f', -1, 64), "м²")
		fmt.Fprintln(w, "Цена:", f.Price, "тенге")
		fmt.Fprintf(w, "Этаж: %s/%s\n", optional(f.Floor), optional(f.BuildingHeight))
		fmt.Fprintln(w)
	}
}

func optional(n *int) string {
	if n == nil {
		return "-"
	}
	return strconv.Itoa(*n)
}
