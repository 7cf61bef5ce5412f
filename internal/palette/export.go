package palette

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// JSON encodes the palette as {"scheme":..,"base":..,"colors":[..]}.
func (p Palette) JSON() (string, error) {
	out, err := sjson.Set("", "scheme", string(p.Scheme))
	if err != nil {
		return "", err
	}
	if out, err = sjson.Set(out, "base", p.Base); err != nil {
		return "", err
	}
	colors := p.Colors
	if colors == nil {
		colors = []string{}
	}
	if out, err = sjson.Set(out, "colors", colors); err != nil {
		return "", err
	}
	return out, nil
}

// ParseJSON decodes a palette written by JSON.
func ParseJSON(data string) (Palette, error) {
	if !gjson.Valid(data) {
		return Palette{}, fmt.Errorf("parse palette: invalid json")
	}

	res := gjson.GetMany(data, "scheme", "base", "colors")
	scheme, err := ParseScheme(res[0].String())
	if err != nil {
		return Palette{}, err
	}

	p := Palette{Scheme: scheme, Base: res[1].String()}
	if p.Base != "" {
		if _, err := parseHex(p.Base); err != nil {
			return Palette{}, err
		}
	}
	for _, c := range res[2].Array() {
		hex := c.String()
		if _, err := parseHex(hex); err != nil {
			return Palette{}, err
		}
		p.Colors = append(p.Colors, hex)
	}
	return p, nil
}
