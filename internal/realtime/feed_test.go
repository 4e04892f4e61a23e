package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/afiliado-ai/agent-dashboard/internal/model"
	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "leads.loja_azul_base_leads.update", Subject("loja_azul_base_leads", model.ChangeUpdate))
	assert.Equal(t, "leads.loja_azul_base_leads.insert", Subject("loja_azul_base_leads", model.ChangeInsert))
}

func TestTableFilter(t *testing.T) {
	assert.Equal(t, "leads.loja_azul_base_leads.*", TableFilter("loja_azul_base_leads"))
}

func TestSubjectFoldsDottedTableNames(t *testing.T) {
	// A table name derived from an email local part can contain dots; they
	// must not become extra subject tokens.
	assert.Equal(t, "leads.joao_silva_base_leads.update", Subject("joao.silva_base_leads", model.ChangeUpdate))
	assert.Equal(t, "leads.joao_silva_base_leads.*", TableFilter("joao.silva_base_leads"))
}

func TestDisconnectedFeed(t *testing.T) {
	log, err := logger.NewDevelopment()
	assert.NoError(t, err)
	f := NewFeed(nil, log)

	assert.False(t, f.Connected())

	err = f.PublishChange(model.ChangeEvent{Table: "t", Type: model.ChangeUpdate})
	assert.ErrorIs(t, err, ErrDisconnected)

	_, err = f.Subscribe("t", func(model.ChangeEvent) {})
	assert.ErrorIs(t, err, ErrDisconnected)
}
