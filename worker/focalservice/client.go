package focalservice

import (
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/net/context"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/nci/gfocal/processor"
	"github.com/nci/gfocal/utils"
)

// WorkerSet spreads focal tasks round robin over a set of worker nodes.
type WorkerSet struct {
	nodes   []string
	conns   []*grpc.ClientConn
	clients []FocalClient
	next    uint32
}

func NewWorkerSet(nodes []string, maxRecvMsgSize int, opts ...grpc.DialOption) (*WorkerSet, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no worker nodes given")
	}
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxRecvMsgSize), grpc.MaxCallSendMsgSize(maxRecvMsgSize)),
	}, opts...)

	ws := &WorkerSet{nodes: nodes}
	for _, node := range nodes {
		conn, err := grpc.NewClient(node, opts...)
		if err != nil {
			ws.Close()
			return nil, fmt.Errorf("worker %s: %v", node, err)
		}
		ws.conns = append(ws.conns, conn)
		ws.clients = append(ws.clients, NewFocalClient(conn))
	}
	return ws, nil
}

// Process sends task to the next worker and returns its result along with
// the worker address.
func (ws *WorkerSet) Process(ctx context.Context, task *FocalTask) (*FocalResult, string, error) {
	i := int(atomic.AddUint32(&ws.next, 1)-1) % len(ws.clients)
	res, err := ws.clients[i].Process(ctx, task)
	if err != nil {
		return nil, ws.nodes[i], rewrapError(err)
	}
	return res, ws.nodes[i], nil
}

var remoteErrors = []error{
	processor.ErrInvalidWindow,
	processor.ErrUnsupportedStatistic,
	processor.ErrEmptyGrid,
	processor.ErrGridShape,
	utils.ErrMalformedGrid,
}

// rewrapError restores the sentinel behind a rejected task so callers can
// keep using errors.Is on remote failures.
func rewrapError(err error) error {
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.InvalidArgument {
		return err
	}
	msg := st.Message()
	for _, known := range remoteErrors {
		if strings.HasPrefix(msg, known.Error()) {
			return fmt.Errorf("%w%s", known, strings.TrimPrefix(msg, known.Error()))
		}
	}
	return err
}

func (ws *WorkerSet) Close() error {
	var firstErr error
	for _, conn := range ws.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
