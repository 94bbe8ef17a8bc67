package sencillo

// PopulateOptions configures a Populate join: for each input document,
// LocalField's value is matched against ForeignField in ForeignCollection,
// and the match (or matches, if Many is set) are attached under As.
type PopulateOptions struct {
	LocalField        string
	ForeignCollection string
	ForeignField      string
	As                string
	// Many attaches every match as a slice under As. Unset attaches the
	// first match only (or leaves As absent if there is no match).
	Many bool
}

// Populate runs a one-hop join across docs, mutating clones of them in
// place with the matched foreign document(s) attached under opts.As. It
// does not mutate any document resident in the store — docs is expected
// to already be a caller-owned slice, typically the result of a prior
// Find/FindMany call.
func (tx *Tx) Populate(docs []Document, opts PopulateOptions) ([]Document, error) {
	if opts.LocalField == "" || opts.ForeignCollection == "" || opts.ForeignField == "" || opts.As == "" {
		return nil, validationError("populate requires localField, foreignCollection, foreignField, and as")
	}

	out := make([]Document, len(docs))
	cache := map[string][]Document{}

	for i, doc := range docs {
		local, ok := doc[opts.LocalField]
		if !ok {
			out[i] = doc.clone()
			continue
		}
		key := stringify(local)
		matches, ok := cache[key]
		if !ok {
			var err error
			matches, err = tx.FindMany(opts.ForeignCollection, Document{opts.ForeignField: local}, FindOptions{})
			if err != nil {
				return nil, err
			}
			cache[key] = matches
		}

		result := doc.clone()
		switch {
		case opts.Many:
			result[opts.As] = matches
		case len(matches) > 0:
			result[opts.As] = matches[0]
		}
		out[i] = result
	}
	return out, nil
}
