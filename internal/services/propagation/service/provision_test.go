package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/services/propagation/domain"
	"tariffsync/internal/services/propagation/domain/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestProvisioner(t *testing.T, email string) (*Provisioner, *mocks.MockDocumentClient, *mocks.MockRegistryWriter) {
	ctrl := gomock.NewController(t)
	docs := mocks.NewMockDocumentClient(ctrl)
	w := mocks.NewMockRegistryWriter(ctrl)
	p := NewProvisioner(docs, w, ProvisionConfig{UserEmail: email})
	n := 0
	p.newID = func() string { n++; return fmt.Sprintf("u%d", n) }
	return p, docs, w
}

func TestProvision_CreatesRegistersAndShares(t *testing.T) {
	p, docs, w := newTestProvisioner(t, "ops@example.com")
	grid := domain.Grid{Sheet: "stocks_coefs", Rows: 1000, Columns: 8}
	header := [][]string{domain.Header}

	for i, id := range []string{"D1", "D2"} {
		title := fmt.Sprintf("Stocks_u%d", i+1)
		gomock.InOrder(
			docs.EXPECT().CreateDocument(gomock.Any(), title, grid).Return(id, nil),
			docs.EXPECT().WriteRegion(gomock.Any(), id, "stocks_coefs", header).Return(nil),
			w.EXPECT().Register(gomock.Any(), id).Return(nil),
			docs.EXPECT().GrantAccess(gomock.Any(), id, "ops@example.com", domain.RoleWriter).Return(nil),
		)
	}

	ids, err := p.Provision(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"D1", "D2"}, ids)
}

func TestProvision_MissingEmailSkipsGrant(t *testing.T) {
	p, docs, w := newTestProvisioner(t, "")
	docs.EXPECT().CreateDocument(gomock.Any(), gomock.Any(), gomock.Any()).Return("D1", nil)
	docs.EXPECT().WriteRegion(gomock.Any(), "D1", gomock.Any(), gomock.Any()).Return(nil)
	w.EXPECT().Register(gomock.Any(), "D1").Return(nil)
	docs.EXPECT().GrantAccess(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	ids, err := p.Provision(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"D1"}, ids)
}

func TestProvision_GrantFailureIsNotFatal(t *testing.T) {
	p, docs, w := newTestProvisioner(t, "ops@example.com")
	docs.EXPECT().CreateDocument(gomock.Any(), gomock.Any(), gomock.Any()).Return("D1", nil)
	docs.EXPECT().WriteRegion(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	w.EXPECT().Register(gomock.Any(), "D1").Return(nil)
	docs.EXPECT().GrantAccess(gomock.Any(), "D1", gomock.Any(), gomock.Any()).Return(errors.New("403"))

	ids, err := p.Provision(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestProvision_StopsAtFirstCreateFailure(t *testing.T) {
	p, docs, w := newTestProvisioner(t, "")
	gomock.InOrder(
		docs.EXPECT().CreateDocument(gomock.Any(), "Stocks_u1", gomock.Any()).Return("D1", nil),
		docs.EXPECT().WriteRegion(gomock.Any(), "D1", gomock.Any(), gomock.Any()).Return(nil),
		w.EXPECT().Register(gomock.Any(), "D1").Return(nil),
		docs.EXPECT().CreateDocument(gomock.Any(), "Stocks_u2", gomock.Any()).Return("", errors.New("quota")),
	)

	ids, err := p.Provision(context.Background(), 3)
	require.Error(t, err)
	assert.Equal(t, perr.ErrorCodePublish, perr.CodeOf(err))
	assert.Equal(t, []string{"D1"}, ids)
}

func TestProvision_RegisterFailureIsReturned(t *testing.T) {
	p, docs, w := newTestProvisioner(t, "")
	docs.EXPECT().CreateDocument(gomock.Any(), gomock.Any(), gomock.Any()).Return("D1", nil)
	docs.EXPECT().WriteRegion(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	w.EXPECT().Register(gomock.Any(), "D1").Return(perr.Persistence(errors.New("conn reset"), "register"))

	ids, err := p.Provision(context.Background(), 1)
	assert.Equal(t, perr.ErrorCodePersistence, perr.CodeOf(err))
	assert.Empty(t, ids)
}

func TestProvision_CountBounds(t *testing.T) {
	p, _, _ := newTestProvisioner(t, "")
	for _, n := range []int{0, -1, MaxProvision + 1} {
		_, err := p.Provision(context.Background(), n)
		assert.Equal(t, perr.ErrorCodeInvalidArgument, perr.CodeOf(err), "n=%d", n)
	}
}
