// Package geoenc is the shared wire format for a district's geometry blob:
// a varint-framed table of s2.Shape values followed by an encoded S2 shape
// index over them. internal/geomutil encodes into this format at build
// time; internal/cache decodes out of it, lazily, on the query path. The
// framing is carried over from geobbolt's encodeFullEntry/decodeFullEntry,
// minus the property bytes (district attributes live in the store's own
// row encoding instead) and minus the point/polyline shape types geobbolt
// supports: a district's geometry is always exactly one *s2.Polygon.
package geoenc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/golang/geo/s2"
)

const typePolygon byte = 3

// EncodeShapes serializes shapes as [CountUvarint]([TypeByte][LenUvarint]
// [ShapeBytes])*[EncodedS2ShapeIndex], building the index over the same
// shapes as it goes.
func EncodeShapes(shapes []s2.Shape) ([]byte, error) {
	var buf bytes.Buffer
	var b [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(b[:], uint64(len(shapes)))
	buf.Write(b[:n])

	index := s2.NewShapeIndex()
	for _, shape := range shapes {
		index.Add(shape)

		poly, ok := shape.(*s2.Polygon)
		if !ok {
			return nil, fmt.Errorf("geoenc: unsupported shape type %T", shape)
		}

		var shapeBuf bytes.Buffer
		if err := poly.Encode(&shapeBuf); err != nil {
			return nil, err
		}

		buf.WriteByte(typePolygon)
		n := binary.PutUvarint(b[:], uint64(shapeBuf.Len()))
		buf.Write(b[:n])
		buf.Write(shapeBuf.Bytes())
	}

	index.Build()
	if err := index.Encode(&buf); err != nil {
		return nil, fmt.Errorf("geoenc: encode shape index: %w", err)
	}
	return buf.Bytes(), nil
}

type shapeInfo struct {
	offset int64
	length int64
	typ    byte
}

// LazyFactory implements s2.ShapeFactory, decoding a shape from the backing
// buffer only when GetShape is called for it.
type LazyFactory struct {
	r      *bytes.Reader
	shapes []shapeInfo
}

func (f *LazyFactory) GetShape(id int) s2.Shape {
	if id < 0 || id >= len(f.shapes) {
		return nil
	}
	info := f.shapes[id]
	if info.typ != typePolygon {
		return nil
	}
	if _, err := f.r.Seek(info.offset, io.SeekStart); err != nil {
		return nil
	}
	lr := io.LimitReader(f.r, info.length)

	var p s2.Polygon
	if err := p.Decode(lr); err != nil {
		return nil
	}
	return &p
}

func (f *LazyFactory) Len() int { return len(f.shapes) }

// DecodeIndex parses the shape table header and returns a lazily-backed
// s2.EncodedS2ShapeIndex plus the factory it reads through.
func DecodeIndex(data []byte) (*s2.EncodedS2ShapeIndex, *LazyFactory, error) {
	r := bytes.NewReader(data)

	shapeCount, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, nil, fmt.Errorf("geoenc: read shape count: %w", err)
	}

	infos := make([]shapeInfo, shapeCount)
	for i := range infos {
		typ, err := r.ReadByte()
		if err != nil {
			return nil, nil, fmt.Errorf("geoenc: read shape type: %w", err)
		}
		length, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, nil, fmt.Errorf("geoenc: read shape length: %w", err)
		}
		offset, _ := r.Seek(0, io.SeekCurrent)
		infos[i] = shapeInfo{offset: offset, length: int64(length), typ: typ}
		if _, err := r.Seek(int64(length), io.SeekCurrent); err != nil {
			return nil, nil, fmt.Errorf("geoenc: skip shape body: %w", err)
		}
	}

	factory := &LazyFactory{r: bytes.NewReader(data), shapes: infos}

	index := s2.NewEncodedS2ShapeIndex()
	if err := index.Init(r, factory); err != nil {
		return nil, nil, fmt.Errorf("geoenc: init shape index: %w", err)
	}
	return index, factory, nil
}

// Shapes eagerly materializes every shape in factory, useful once an index
// lookup has already confirmed a shape is worth decoding in full.
func Shapes(factory *LazyFactory) []s2.Shape {
	shapes := make([]s2.Shape, factory.Len())
	for i := range shapes {
		shapes[i] = factory.GetShape(i)
	}
	return shapes
}
