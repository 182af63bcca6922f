package records

// copiedFields are taken from the item as-is, in Columns order up to updated_at.
var copiedFields = []string{
	ColID, ColRegionNumberID, ColFirstLetter, ColSecondLetter, ColNumber,
	ColPrice, ColCurrency, ColCityID, ColViews, ColAuthorPhone,
	ColAuthorName, ColDescription, ColUserID, ColStatus, ColDeletedAt,
	ColCreatedAt, ColUpdatedAt,
}

// emptyWhenNull lists the fields whose null is written as "".
var emptyWhenNull = map[string]bool{
	ColDescription: true,
	ColDeletedAt:   true,
}

// Flatten maps one item to a flat record. Every copied key, the region object
// with region_number and name, and the city object with name must be present;
// otherwise a *MissingFieldError is returned.
func Flatten(item Item) (FlatRecord, error) {
	rec := make(FlatRecord, 0, len(Columns))
	id := item[ColID]

	for _, field := range copiedFields {
		v, ok := item[field]
		if !ok {
			return nil, &MissingFieldError{ItemID: id, Path: field}
		}
		if v == nil && emptyWhenNull[field] {
			v = ""
		}
		rec = append(rec, v)
	}

	region, err := nested(item, "region", id)
	if err != nil {
		return nil, err
	}
	city, err := nested(item, "city", id)
	if err != nil {
		return nil, err
	}

	regionNumber, ok := region["region_number"]
	if !ok {
		return nil, &MissingFieldError{ItemID: id, Path: "region.region_number"}
	}
	regionName, ok := region["name"]
	if !ok {
		return nil, &MissingFieldError{ItemID: id, Path: "region.name"}
	}
	cityName, ok := city["name"]
	if !ok {
		return nil, &MissingFieldError{ItemID: id, Path: "city.name"}
	}

	return append(rec, regionNumber, regionName, cityName), nil
}

// FlattenAll flattens items in order and stops at the first failure.
func FlattenAll(items []Item) ([]FlatRecord, error) {
	out := make([]FlatRecord, 0, len(items))
	for _, item := range items {
		rec, err := Flatten(item)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func nested(item Item, key string, id any) (map[string]any, error) {
	raw, ok := item[key]
	if !ok {
		return nil, &MissingFieldError{ItemID: id, Path: key}
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, &MissingFieldError{ItemID: id, Path: key}
	}
	return obj, nil
}
