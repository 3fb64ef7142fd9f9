package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackageHashDeterminism(t *testing.T) {
	pkg := &Package{
		Name: "main",
		Decls: []Node{
			&DefineLocal{Name: "x", Value: &Local{Name: "y"}},
		},
	}

	h1, err := PackageHash(pkg)
	require.NoError(t, err)
	h2, err := PackageHash(pkg)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestPackageHashChangesWithContent(t *testing.T) {
	a := &Package{Name: "main", Decls: []Node{&Tensor{Value: &Whole{Digits: "1"}}}}
	b := &Package{Name: "main", Decls: []Node{&Tensor{Value: &Whole{Digits: "2"}}}}

	ha, err := PackageHash(a)
	require.NoError(t, err)
	hb, err := PackageHash(b)
	require.NoError(t, err)

	assert.NotEqual(t, ha, hb)
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`["_sf_package","main"]`)
	assert.NotEqual(t,
		hashWithDomain(DomainPackage, data),
		hashWithDomain(DomainPallet, data),
		"same bytes under different domains must hash differently")
	assert.Equal(t, hashWithDomain(DomainPallet, data), PalletID(data))
}
