package mocks

//go:generate mockery --name CatalogClient --srcpkg github.com/aevon-lab/cubexport/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
