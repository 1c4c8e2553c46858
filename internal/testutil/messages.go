package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"time"
)

const sep = "================================================================================\n"

const HeaderDef = `uint32 seq
time stamp
string frame_id
`

const CompressedImageType = "sensor_msgs/CompressedImage"

const CompressedImageDef = `Header header
string format  # jpeg or png
uint8[] data
` + sep + "MSG: std_msgs/Header\n" + HeaderDef

const ImageType = "sensor_msgs/Image"

const ImageDef = `Header header
uint32 height
uint32 width
string encoding
uint8 is_bigendian
uint32 step
uint8[] data
` + sep + "MSG: std_msgs/Header\n" + HeaderDef

const NavSatFixType = "sensor_msgs/NavSatFix"

const NavSatFixDef = `Header header
NavSatStatus status
float64 latitude
float64 longitude
float64 altitude
float64[9] position_covariance
uint8 COVARIANCE_TYPE_UNKNOWN=0
uint8 position_covariance_type
` + sep + "MSG: std_msgs/Header\n" + HeaderDef + sep + `MSG: sensor_msgs/NavSatStatus
int8 STATUS_FIX=0 # unaugmented fix
int8 status
uint16 SERVICE_GPS=1
uint16 service
`

const PointCloud2Type = "sensor_msgs/PointCloud2"

const PointCloud2Def = `Header header
uint32 height
uint32 width
PointField[] fields
bool is_bigendian
uint32 point_step
uint32 row_step
uint8[] data
bool is_dense
` + sep + "MSG: std_msgs/Header\n" + HeaderDef + sep + `MSG: sensor_msgs/PointField
uint8 FLOAT32=7
string name
uint32 offset
uint8 datatype
uint32 count
`

const TwistStampedType = "geometry_msgs/TwistStamped"

const TwistStampedDef = `Header header
Twist twist
` + sep + "MSG: std_msgs/Header\n" + HeaderDef + sep + `MSG: geometry_msgs/Twist
Vector3 linear
Vector3 angular
` + sep + `MSG: geometry_msgs/Vector3
float64 x
float64 y
float64 z
`

const VehicleStateType = "dbw_msgs/VehicleState"

const VehicleStateDef = `Header header
float32 speed
float32 steering_angle
uint8 gear
` + sep + "MSG: std_msgs/Header\n" + HeaderDef

// Writer serializes values in ROS1 wire format.
type Writer struct {
	bytes.Buffer
}

func (w *Writer) Uint8(v uint8) *Writer {
	w.WriteByte(v)
	return w
}

func (w *Writer) Uint16(v uint16) *Writer {
	_ = binary.Write(&w.Buffer, binary.LittleEndian, v)
	return w
}

func (w *Writer) Uint32(v uint32) *Writer {
	_ = binary.Write(&w.Buffer, binary.LittleEndian, v)
	return w
}

func (w *Writer) Float32(v float32) *Writer {
	_ = binary.Write(&w.Buffer, binary.LittleEndian, math.Float32bits(v))
	return w
}

func (w *Writer) Float64(v float64) *Writer {
	_ = binary.Write(&w.Buffer, binary.LittleEndian, math.Float64bits(v))
	return w
}

func (w *Writer) String(s string) *Writer {
	w.Uint32(uint32(len(s)))
	w.WriteString(s)
	return w
}

func (w *Writer) ByteArray(b []byte) *Writer {
	w.Uint32(uint32(len(b)))
	w.Write(b)
	return w
}

func (w *Writer) Time(t time.Time) *Writer {
	w.Uint32(uint32(t.Unix()))
	w.Uint32(uint32(t.Nanosecond()))
	return w
}

func (w *Writer) Header(seq uint32, t time.Time, frameID string) *Writer {
	return w.Uint32(seq).Time(t).String(frameID)
}

func CompressedImage(t time.Time, format string, data []byte) []byte {
	var w Writer
	w.Header(0, t, "camera").String(format).ByteArray(data)
	return w.Bytes()
}

func NavSatFix(t time.Time, lat, lon, alt float64) []byte {
	var w Writer
	w.Header(0, t, "gps").Uint8(0).Uint16(1).Float64(lat).Float64(lon).Float64(alt)
	for i := 0; i < 9; i++ {
		w.Float64(0)
	}
	w.Uint8(0)
	return w.Bytes()
}

func PointCloud2(t time.Time, width uint32) []byte {
	var w Writer
	w.Header(0, t, "lidar").Uint32(1).Uint32(width)
	w.Uint32(3)
	for i, name := range []string{"x", "y", "z"} {
		w.String(name).Uint32(uint32(4 * i)).Uint8(7).Uint32(1)
	}
	w.Uint8(0).Uint32(12).Uint32(12 * width)
	w.ByteArray(make([]byte, 12*width))
	w.Uint8(1)
	return w.Bytes()
}

func TwistStamped(t time.Time, vx, yaw float64) []byte {
	var w Writer
	w.Header(0, t, "base_link").Float64(vx).Float64(0).Float64(0).Float64(0).Float64(0).Float64(yaw)
	return w.Bytes()
}

func VehicleState(t time.Time, speed, steering float32, gear uint8) []byte {
	var w Writer
	w.Header(0, t, "base_link").Float32(speed).Float32(steering).Uint8(gear)
	return w.Bytes()
}

// JPEG encodes a small solid-colour test image.
func JPEG(width, height int) []byte {
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, solid(width, height), &jpeg.Options{Quality: 80})
	return buf.Bytes()
}

// PNG encodes a small solid-colour test image.
func PNG(width, height int) []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, solid(width, height))
	return buf.Bytes()
}

func solid(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 5), B: 120, A: 255})
		}
	}
	return img
}
