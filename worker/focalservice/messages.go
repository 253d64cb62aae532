package focalservice

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/golang/protobuf/proto"

	"github.com/nci/gfocal/utils"
)

// GridMessage is the wire form of a utils.Grid. Values travel as little
// endian float64 bytes so NaN cells survive unchanged.
type GridMessage struct {
	Rows         int32     `protobuf:"varint,1,opt,name=rows,proto3" json:"rows,omitempty"`
	Cols         int32     `protobuf:"varint,2,opt,name=cols,proto3" json:"cols,omitempty"`
	DType        string    `protobuf:"bytes,3,opt,name=dtype,proto3" json:"dtype,omitempty"`
	HasNoData    bool      `protobuf:"varint,4,opt,name=has_nodata,json=hasNodata,proto3" json:"has_nodata,omitempty"`
	NoData       float64   `protobuf:"fixed64,5,opt,name=nodata,proto3" json:"nodata,omitempty"`
	GeoTransform []float64 `protobuf:"fixed64,6,rep,packed,name=geo_transform,json=geoTransform,proto3" json:"geo_transform,omitempty"`
	Data         []byte    `protobuf:"bytes,7,opt,name=data,proto3" json:"data,omitempty"`
}

func (m *GridMessage) Reset()         { *m = GridMessage{} }
func (m *GridMessage) String() string { return proto.CompactTextString(m) }
func (*GridMessage) ProtoMessage()    {}

type FocalTask struct {
	Id         string       `protobuf:"bytes,1,opt,name=id,proto3" json:"id,omitempty"`
	Grid       *GridMessage `protobuf:"bytes,2,opt,name=grid,proto3" json:"grid,omitempty"`
	WindowSize int32        `protobuf:"varint,3,opt,name=window_size,json=windowSize,proto3" json:"window_size,omitempty"`
	Statistic  string       `protobuf:"bytes,4,opt,name=statistic,proto3" json:"statistic,omitempty"`
	Boundary   string       `protobuf:"bytes,5,opt,name=boundary,proto3" json:"boundary,omitempty"`
}

func (m *FocalTask) Reset()         { *m = FocalTask{} }
func (m *FocalTask) String() string { return proto.CompactTextString(m) }
func (*FocalTask) ProtoMessage()    {}

type FocalResult struct {
	Id         string       `protobuf:"bytes,1,opt,name=id,proto3" json:"id,omitempty"`
	Grid       *GridMessage `protobuf:"bytes,2,opt,name=grid,proto3" json:"grid,omitempty"`
	Error      string       `protobuf:"bytes,3,opt,name=error,proto3" json:"error,omitempty"`
	DurationNs int64        `protobuf:"varint,4,opt,name=duration_ns,json=durationNs,proto3" json:"duration_ns,omitempty"`
	// Precondition is set when Error comes from a rejected task rather
	// than a failure while computing it.
	Precondition bool `protobuf:"varint,5,opt,name=precondition,proto3" json:"precondition,omitempty"`
}

func (m *FocalResult) Reset()         { *m = FocalResult{} }
func (m *FocalResult) String() string { return proto.CompactTextString(m) }
func (*FocalResult) ProtoMessage()    {}

func NewGridMessage(g *utils.Grid) *GridMessage {
	m := &GridMessage{
		Rows:         int32(g.Rows),
		Cols:         int32(g.Cols),
		DType:        g.DType.String(),
		GeoTransform: g.GeoTransform,
		Data:         make([]byte, 8*len(g.Data)),
	}
	if g.NoData != nil && !math.IsNaN(*g.NoData) {
		m.HasNoData = true
		m.NoData = *g.NoData
	}
	for i, v := range g.Data {
		binary.LittleEndian.PutUint64(m.Data[8*i:], math.Float64bits(v))
	}
	return m
}

func (m *GridMessage) ToGrid() (*utils.Grid, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: no grid in message", utils.ErrMalformedGrid)
	}
	dtype, err := utils.ParseDType(m.DType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrMalformedGrid, err)
	}
	rows, cols := int(m.Rows), int(m.Cols)
	if rows < 0 || cols < 0 || len(m.Data) != 8*rows*cols {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d grid", utils.ErrMalformedGrid, len(m.Data), m.Rows, m.Cols)
	}

	g := utils.NewGrid(rows, cols, dtype)
	if m.HasNoData {
		g.SetNoData(m.NoData)
	}
	if len(m.GeoTransform) > 0 {
		g.GeoTransform = append([]float64(nil), m.GeoTransform...)
	}
	for i := range g.Data {
		g.Data[i] = math.Float64frombits(binary.LittleEndian.Uint64(m.Data[8*i:]))
	}
	return g, nil
}
