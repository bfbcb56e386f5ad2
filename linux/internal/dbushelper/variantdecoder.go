//go:build linux

package dbushelper

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/ugorji/go/codec"
)

// variantExt represents a go-codec extension to parse DBus variant values.
type variantExt struct{}

// ConvertExt converts a variant struct into an encodable value.
func (v variantExt) ConvertExt(variant any) any {
	switch value := variant.(type) {
	case *dbus.Variant:
		return value.Value()

	case dbus.Variant:
		return value.Value()
	}

	return variant
}

// UpdateExt is never called, since variants are only ever encoded.
func (v variantExt) UpdateExt(any, any) {}

// resolver holds an encoder and decoder.
type resolver struct {
	encoder *codec.Encoder
	decoder *codec.Decoder
	data    []byte

	once sync.Once
	sync.Mutex
}

var variantDecoder resolver

// DecodeVariantMap decodes a map of variants into the provided data.
// The properties named in checkProps must carry a signature, if present.
// Bluetooth addresses are decoded with the bluetooth.MacAddress TextUnmarshaler.
func DecodeVariantMap(variants map[string]dbus.Variant, data any, checkProps ...string) error {
	variantDecoder.Lock()
	defer variantDecoder.Unlock()

	variantDecoder.once.Do(func() {
		handle := codec.JsonHandle{}
		handle.TypeInfos = codec.NewTypeInfos([]string{"codec"})
		handle.SetInterfaceExt(reflect.TypeOf(dbus.Variant{}), 1, variantExt{})
		handle.SetInterfaceExt(reflect.TypeOf((*dbus.Variant)(nil)), 1, variantExt{})

		variantDecoder.encoder = codec.NewEncoderBytes(&variantDecoder.data, &handle)
		variantDecoder.decoder = codec.NewDecoderBytes(variantDecoder.data, &handle)
	})

	for _, prop := range checkProps {
		value, ok := variants[prop]
		if !ok {
			continue
		}

		if value.Signature().Empty() {
			return fmt.Errorf("no signature found for property '%s'", prop)
		}
	}

	variantDecoder.encoder.ResetBytes(&variantDecoder.data)
	if err := variantDecoder.encoder.Encode(&variants); err != nil {
		return err
	}

	variantDecoder.decoder.ResetBytes(variantDecoder.data)

	return variantDecoder.decoder.Decode(data)
}

// Property returns the value of a single property from a variant map.
func Property[T any](variants map[string]dbus.Variant, name string) (T, bool) {
	var value T

	variant, ok := variants[name]
	if !ok {
		return value, false
	}

	value, ok = variant.Value().(T)

	return value, ok
}
