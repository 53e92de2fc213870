package sentence

import (
	"github.com/relabs-tech/baro_vario/internal/baro"
)

// AppendPOGNB appends the full barometer report:
//
//	$POGNB,<ss.hh>,<temp C>,<pressure Pa>,<noise Pa>,<std alt m>,<alt m>,<climb m/s>[,<humidity %>]*CS
func AppendPOGNB(dst []byte, e baro.Estimate) []byte {
	dst = append(dst, "$POGNB,"...)
	dst = AppendUnsDec(dst, e.Time%60, 2, 0)
	dst = append(dst, '.')
	dst = AppendUnsDec(dst, uint32(e.MsTime/10), 2, 0)
	dst = append(dst, ',')
	dst = AppendSignDec(dst, e.Temperature, 2, 1, false)
	dst = append(dst, ',')
	dst = AppendUnsDec(dst, uint32(10*int64(e.Pressure)+2)>>2, 2, 1) // 0.1 Pa
	dst = append(dst, ',')
	dst = AppendUnsDec(dst, e.Noise, 2, 1)
	dst = append(dst, ',')
	dst = AppendSignDec(dst, e.StdAltitude, 2, 1, false)
	dst = append(dst, ',')
	dst = AppendSignDec(dst, e.Altitude, 2, 1, false)
	dst = append(dst, ',')
	dst = AppendSignDec(dst, e.ClimbRate, 3, 2, false)
	if e.HasHumidity {
		dst = append(dst, ',')
		dst = AppendSignDec(dst, e.Humidity, 3, 1, false)
	}
	return AppendChecksum(dst)
}

// AppendPGRMZ appends the Garmin pressure altitude sentence, in feet with
// a 3D fix indicator.
func AppendPGRMZ(dst []byte, e baro.Estimate) []byte {
	feet := (int64(e.StdAltitude)*3360 + 512) >> 10 // 0.1 ft
	dst = append(dst, "$PGRMZ,"...)
	dst = AppendSignDec(dst, int32(feet/10), 1, 0, true)
	dst = append(dst, ",f,3"...)
	return AppendChecksum(dst)
}

// AppendLK8EX1 appends the LK8000 vario sentence. batteryMV is rendered
// in volts.
func AppendLK8EX1(dst []byte, e baro.Estimate, batteryMV uint32) []byte {
	dst = append(dst, "$LK8EX1,"...)
	dst = AppendUnsDec(dst, uint32(e.Pressure+2)>>2, 1, 0) // Pa
	dst = append(dst, ',')
	dst = AppendSignDec(dst, (e.StdAltitude+5)/10, 1, 0, false) // m
	dst = append(dst, ',')
	dst = AppendSignDec(dst, e.ClimbRate, 1, 0, false) // cm/s
	dst = append(dst, ',')
	dst = AppendSignDec(dst, (e.Temperature+5)/10, 1, 0, false) // °C
	dst = append(dst, ',')
	dst = AppendUnsDec(dst, batteryMV, 4, 3)
	return AppendChecksum(dst)
}
