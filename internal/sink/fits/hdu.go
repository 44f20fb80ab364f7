package fits

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aevon-lab/cubexport/internal/core/cube"
	"github.com/aevon-lab/cubexport/internal/sink"
)

func encode(ds *sink.Dataset) ([]byte, error) {
	primary := -1
	for i, v := range ds.Vars {
		if !v.Coordinate {
			primary = i
			break
		}
	}

	h := &header{}
	var data []byte
	if primary >= 0 {
		var err error
		if data, err = imageHDU(h, ds, ds.Vars[primary], true); err != nil {
			return nil, err
		}
	} else {
		h.logical("SIMPLE", true)
		h.int("BITPIX", 8)
		h.int("NAXIS", 0)
		h.logical("EXTEND", true)
	}
	if u := ds.Unlimited(); u >= 0 {
		h.string("UNLIMDIM", ds.Dims[u].Name)
	}
	for _, a := range ds.Attrs {
		if err := h.hierarch(globalPrefix+a.Key, a.Value); err != nil {
			return nil, err
		}
	}
	out := append(h.bytes(), data...)

	for i, v := range ds.Vars {
		if i == primary {
			continue
		}
		h := &header{}
		data, err := imageHDU(h, ds, v, false)
		if err != nil {
			return nil, err
		}
		out = append(out, h.bytes()...)
		out = append(out, data...)
	}
	return out, nil
}

// imageHDU fills h with the structural cards and attributes of v and returns
// its padded data block.
func imageHDU(h *header, ds *sink.Dataset, v *sink.Variable, primary bool) ([]byte, error) {
	bp, err := bitpix(v.Type)
	if err != nil {
		return nil, err
	}
	shape := ds.Shape(v)
	n := len(shape)

	if primary {
		h.logical("SIMPLE", true)
	} else {
		h.string("XTENSION", "IMAGE")
	}
	h.int("BITPIX", bp)
	h.int("NAXIS", int64(n))
	for i := 1; i <= n; i++ {
		h.int(fmt.Sprintf("NAXIS%d", i), int64(shape[n-i]))
	}
	if primary {
		h.logical("EXTEND", true)
	} else {
		h.int("PCOUNT", 0)
		h.int("GCOUNT", 1)
	}
	if v.Type == cube.TypeByte {
		h.int("BZERO", -128)
		h.int("BSCALE", 1)
	}
	if v.Fill != nil {
		switch {
		case v.Type == cube.TypeByte:
			h.int("BLANK", v.Fill.Int+128)
		case v.Type.IsInteger():
			h.int("BLANK", v.Fill.Int)
		case math.IsNaN(v.Fill.Float) || math.IsInf(v.Fill.Float, 0):
			h.string("FILLVAL", v.Fill.String())
		default:
			h.float("FILLVAL", v.Fill.Float)
		}
	}
	h.string("EXTNAME", v.Name)
	h.string("DATATYPE", v.Type.String())
	for i := 1; i <= n; i++ {
		h.string(fmt.Sprintf("CTYPE%d", i), ds.Dims[v.Dims[n-i]].Name)
	}
	for _, a := range v.Attrs {
		if err := h.hierarch(a.Key, a.Value); err != nil {
			return nil, fmt.Errorf("variable %q: %w", v.Name, err)
		}
	}

	data := sink.SwapOrder(v.Data, v.Type.MustWidth())
	if v.Type == cube.TypeByte {
		for i := range data {
			data[i] ^= 0x80
		}
	}
	for len(data)%blockLen != 0 {
		data = append(data, 0)
	}
	return data, nil
}

type hdu struct {
	cards map[string]card
	attrs []card
	data  []byte
}

func (h *hdu) int(key string) (int64, bool, error) {
	c, ok := h.cards[key]
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(c.value, 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("card %s: %w", key, err)
	}
	return v, true, nil
}

func (h *hdu) string(key string) string {
	return strings.TrimRight(h.cards[key].value, " ")
}

// readHDU parses one header and locates its data. It returns the offset
// of the next HDU.
func readHDU(raw []byte, off int) (*hdu, int, error) {
	h := &hdu{cards: map[string]card{}}
	var last *card
	end := false
	for !end {
		if off+blockLen > len(raw) {
			return nil, 0, fmt.Errorf("header at byte %d is truncated", off)
		}
		block := raw[off : off+blockLen]
		off += blockLen
		for i := 0; i < blockLen && !end; i += cardLen {
			c, _ := parseCard(string(block[i : i+cardLen]))
			switch {
			case c.key == "END":
				end = true
			case c.key == "CONTINUE":
				if last != nil && last.quoted && strings.HasSuffix(last.value, "&") {
					last.value = strings.TrimSuffix(last.value, "&") + c.value
				}
			case strings.HasPrefix(c.key, "HIERARCH "):
				h.attrs = append(h.attrs, c)
				last = &h.attrs[len(h.attrs)-1]
			default:
				h.cards[c.key] = c
				last = nil
			}
		}
	}

	bp, ok, err := h.int("BITPIX")
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, fmt.Errorf("HDU at byte %d has no BITPIX", off)
	}
	naxis, _, err := h.int("NAXIS")
	if err != nil {
		return nil, 0, err
	}
	size := int64(0)
	if naxis > 0 {
		size = int64(math.Abs(float64(bp)) / 8)
		for i := int64(1); i <= naxis; i++ {
			n, ok, err := h.int(fmt.Sprintf("NAXIS%d", i))
			if err != nil {
				return nil, 0, err
			}
			if !ok || n < 0 {
				return nil, 0, fmt.Errorf("HDU at byte %d lacks NAXIS%d", off, i)
			}
			size *= n
		}
	}
	if int64(off)+size > int64(len(raw)) {
		return nil, 0, fmt.Errorf("data at byte %d is truncated", off)
	}
	h.data = raw[off : int64(off)+size]
	next := int64(off) + size
	if rem := next % blockLen; rem != 0 {
		next += blockLen - rem
	}
	return h, int(next), nil
}

type image struct {
	v     *sink.Variable
	names []string
	shape []int
	hdu   *hdu
}

func decodeImage(h *hdu) (*image, error) {
	name := h.string("EXTNAME")
	if name == "" {
		return nil, fmt.Errorf("image HDU without EXTNAME")
	}
	bp, _, err := h.int("BITPIX")
	if err != nil {
		return nil, err
	}
	t, err := typeFromBitpix(bp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if tag := h.string("DATATYPE"); tag != "" {
		declared, err := cube.ParseScalarType(tag)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if declared.MustWidth() != t.MustWidth() {
			return nil, fmt.Errorf("%s: DATATYPE %s does not match BITPIX %d", name, declared, bp)
		}
		t = declared
	}

	naxis, _, _ := h.int("NAXIS")
	img := &image{v: &sink.Variable{Name: name, Type: t}, hdu: h}
	for i := naxis; i >= 1; i-- {
		n, _, _ := h.int(fmt.Sprintf("NAXIS%d", i))
		dim := h.string(fmt.Sprintf("CTYPE%d", i))
		if dim == "" {
			dim = fmt.Sprintf("%s_axis%d", name, i)
		}
		img.names = append(img.names, dim)
		img.shape = append(img.shape, int(n))
	}
	img.v.Coordinate = len(img.names) == 1 && img.names[0] == name

	data := sink.SwapOrder(h.data, t.MustWidth())
	if t == cube.TypeByte {
		for i := range data {
			data[i] ^= 0x80
		}
	}
	img.v.Data = data

	if blank, ok, err := h.int("BLANK"); err != nil {
		return nil, err
	} else if ok {
		if t == cube.TypeByte {
			blank -= 128
		}
		img.v.Fill = &cube.Value{Type: t, Int: blank}
	}
	if c, ok := h.cards["FILLVAL"]; ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(c.value), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: FILLVAL: %w", name, err)
		}
		img.v.Fill = &cube.Value{Type: t, Float: f}
	}
	return img, nil
}

func parseAttr(c card) (string, cube.Value, error) {
	key := strings.TrimPrefix(c.key, "HIERARCH ")
	t, err := cube.ParseScalarType(c.comment)
	if err != nil {
		return "", cube.Value{}, fmt.Errorf("attribute %q: %w", key, err)
	}
	val, err := cube.ParseValue(t, c.value)
	if err != nil {
		return "", cube.Value{}, fmt.Errorf("attribute %q: %w", key, err)
	}
	return key, val, nil
}

func decode(raw []byte) (*sink.Dataset, error) {
	if len(raw) < cardLen || !strings.HasPrefix(string(raw[:cardLen]), "SIMPLE  =") {
		return nil, fmt.Errorf("not a FITS file")
	}

	var hdus []*hdu
	for off := 0; off < len(raw); {
		h, next, err := readHDU(raw, off)
		if err != nil {
			return nil, err
		}
		hdus = append(hdus, h)
		off = next
	}

	ds := &sink.Dataset{}
	unlimited := hdus[0].string("UNLIMDIM")
	for _, c := range hdus[0].attrs {
		key, val, err := parseAttr(c)
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(key, globalPrefix) {
			ds.Attrs = append(ds.Attrs, sink.Attr{Key: strings.TrimPrefix(key, globalPrefix), Value: val})
		}
	}

	var images []*image
	for i, h := range hdus {
		naxis, _, _ := h.int("NAXIS")
		if i == 0 && naxis == 0 {
			continue
		}
		img, err := decodeImage(h)
		if err != nil {
			return nil, err
		}
		for _, c := range h.attrs {
			key, val, err := parseAttr(c)
			if err != nil {
				return nil, err
			}
			if i == 0 && strings.HasPrefix(key, globalPrefix) {
				continue
			}
			img.v.Attrs = append(img.v.Attrs, sink.Attr{Key: key, Value: val})
		}
		images = append(images, img)
	}
	// The primary image holds the measure; decode it after the extensions
	// so coordinate dimensions come first.
	if len(images) > 0 && hdus[0] == images[0].hdu {
		images = append(images[1:], images[0])
	}

	addDims := func(img *image) error {
		for j, name := range img.names {
			if idx, ok := ds.DimIndex(name); ok {
				if ds.Dims[idx].Len != img.shape[j] {
					return fmt.Errorf("dimension %q has length %d in %s and %d elsewhere",
						name, img.shape[j], img.v.Name, ds.Dims[idx].Len)
				}
				continue
			}
			if _, err := ds.AddDim(name, img.shape[j], name == unlimited); err != nil {
				return err
			}
		}
		return nil
	}
	for _, img := range images {
		if img.v.Coordinate {
			if err := addDims(img); err != nil {
				return nil, err
			}
		}
	}
	for _, img := range images {
		if err := addDims(img); err != nil {
			return nil, err
		}
		for _, name := range img.names {
			idx, _ := ds.DimIndex(name)
			img.v.Dims = append(img.v.Dims, idx)
		}
		ds.Vars = append(ds.Vars, img.v)
	}
	return ds, nil
}
