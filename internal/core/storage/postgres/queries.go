package postgres

// Catalog queries. All read-only.

const (
	// queryDatacube loads the cube descriptor joined with its container tables.
	queryDatacube = `
		SELECT
			d.id_datacube, d.id_container, d.measure, d.measure_type,
			d.compressed, d.fragment_ids, c.index_table, c.label_table
		FROM datacube d
		JOIN container c ON c.id_container = d.id_container
		WHERE d.id_datacube = $1
	`

	// queryDimensions returns explicit dimensions first, outermost level first.
	// Implicit dimensions keep catalog order.
	queryDimensions = `
		SELECT
			id_dimension, dimension_name, dimension_type, size, explicit, level,
			fk_id_dimension_index, fk_id_dimension_label, unlimited,
			COALESCE(units, ''), COALESCE(calendar, '')
		FROM dimension
		WHERE id_datacube = $1
		ORDER BY explicit DESC, level ASC, id_dimension ASC
	`

	queryFragments = `
		SELECT fragment_ordinal, fragment_name, key_start, key_end, id_db
		FROM fragment
		WHERE id_datacube = $1
		  AND fragment_ordinal = ANY($2)
		ORDER BY fragment_ordinal ASC
	`

	queryShards = `
		SELECT db.id_db, db.id_dbms, ms.dsn, db.db_name
		FROM db_instance db
		JOIN dbms_instance ms ON ms.id_dbms = db.id_dbms
		WHERE db.id_db = ANY($1)
		ORDER BY db.id_db ASC
	`

	queryAttributes = `
		SELECT id_metadata_instance, variable, metadata_key, metadata_type, metadata_value
		FROM metadata_instance
		WHERE id_datacube = $1
		ORDER BY id_metadata_instance ASC
	`

	queryMissingValue = `SELECT id_missing_value FROM datacube WHERE id_datacube = $1`
)

// Shard queries. Table names are quoted with pq.QuoteIdentifier before use.

const (
	queryDimensionIndexFmt = `SELECT dimension FROM %s WHERE id_dimension = $1`
	queryDimensionLabelFmt = `SELECT label FROM %s WHERE id_dimension = $1`
	queryFragmentRowsFmt   = `SELECT id_dim, measure FROM %s ORDER BY id_dim ASC`
)
