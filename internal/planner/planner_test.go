package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wondertwin-ai/hdtest/internal/descriptor"
)

func api(name string, consumes, produces []string) *descriptor.ConcreteAPI {
	a := &descriptor.ConcreteAPI{
		Name:     name,
		Consumes: map[string]bool{},
		Produces: map[string]bool{},
	}
	for _, v := range consumes {
		a.Consumes[v] = true
	}
	for _, v := range produces {
		a.Produces[v] = true
	}
	return a
}

func TestInsertNestsUnderProducer(t *testing.T) {
	login := api("auth/login", nil, []string{"token"})
	listApps := api("apps/list", []string{"token"}, nil)

	reg := NewMapRegistry([]*descriptor.ConcreteAPI{login, listApps})
	p := New(reg, nil)

	require.NoError(t, p.Insert(listApps))
	require.Len(t, p.Root.Children, 1, "expected 1 root child (seeded producer)")

	loginNode := p.Root.Children[0]
	assert.Equal(t, "auth/login", loginNode.Name())
	require.Len(t, loginNode.Children, 1)
	assert.Equal(t, "apps/list", loginNode.Children[0].Name())
}

func TestInsertPredefinedVarSkipsSeeding(t *testing.T) {
	whoami := api("auth/whoami", []string{"token"}, nil)
	reg := NewMapRegistry([]*descriptor.ConcreteAPI{whoami})
	p := New(reg, map[string]bool{"token": true})

	require.NoError(t, p.Insert(whoami))
	require.Len(t, p.Root.Children, 1)
	assert.Equal(t, "auth/whoami", p.Root.Children[0].Name())
}

func TestInsertVarNewBuildsSatellites(t *testing.T) {
	create := api("apps/create", nil, nil)
	create.VarNew = &descriptor.VarNew{Name: "appGuid", Get: "apps/get", Delete: "apps/delete"}
	getApp := api("apps/get", nil, nil)
	delApp := api("apps/delete", nil, nil)

	reg := NewMapRegistry([]*descriptor.ConcreteAPI{create, getApp, delApp})
	p := New(reg, nil)

	require.NoError(t, p.Insert(create))
	node := p.Root.Children[0]

	require.NotNil(t, node.PreRun)
	assert.Equal(t, "apps/get", node.PreRun.Name())
	require.NotNil(t, node.PostRun)
	assert.Equal(t, "apps/delete", node.PostRun.Name())
	assert.True(t, node.Produces["appGuid"])
	assert.True(t, node.Deletes["appGuid"])
}

func TestInsertDetectsProducerCycle(t *testing.T) {
	a := api("a", []string{"y"}, []string{"x"})
	b := api("b", []string{"x"}, []string{"y"})
	reg := NewMapRegistry([]*descriptor.ConcreteAPI{a, b})
	p := New(reg, nil)

	assert.Error(t, p.Insert(a), "expected circular dependency error")
}

func TestInsertMissingProducerErrors(t *testing.T) {
	orphan := api("orphan", []string{"nowhere"}, nil)
	reg := NewMapRegistry([]*descriptor.ConcreteAPI{orphan})
	p := New(reg, nil)

	assert.Error(t, p.Insert(orphan), "expected missing-producer error")
}

func TestSubTreeProducesHonorsDeletes(t *testing.T) {
	create := api("apps/create", nil, nil)
	create.VarNew = &descriptor.VarNew{Name: "appGuid", Get: "apps/get", Delete: "apps/delete"}
	getApp := api("apps/get", nil, nil)
	delApp := api("apps/delete", nil, nil)
	useAppGuid := api("apps/rename", []string{"appGuid"}, nil)

	reg := NewMapRegistry([]*descriptor.ConcreteAPI{create, getApp, delApp, useAppGuid})
	p := New(reg, nil)

	require.NoError(t, p.Insert(create))
	require.NoError(t, p.Insert(useAppGuid))

	createNode := p.Root.Children[0]
	require.Len(t, createNode.Children, 1)
	assert.Equal(t, "apps/rename", createNode.Children[0].Name())

	assert.False(t, p.Root.SubTreeProduces["appGuid"],
		"appGuid should not escape apps/create's subtree once it deletes it")
	assert.True(t, createNode.SubTreeProduces["appGuid"],
		"expected apps/create's own subtree to still report appGuid")
}
