// Package archive records every pass snapshot as CBOR frames in a zstd stream and
// reads them back for offline replay
package archive

import (
	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	enc := cbor.CoreDetEncOptions()
	enc.Time = cbor.TimeRFC3339Nano
	var err error
	if encMode, err = enc.EncMode(); err != nil {
		panic("archive: cbor encoder init: " + err.Error())
	}
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic("archive: cbor decoder init: " + err.Error())
	}
}
