// File: database/repository/availability/queries.go
package availabilityRepo

import "go.mongodb.org/mongo-driver/bson"

func ruleVersionFilter(creatorID string, version int) bson.M {
	return bson.M{"creatorId": creatorID, "version": version}
}

// exceptionRangeFilter matches every recurring exception and the one-off
// exceptions whose [date, endDate] touches [fromDate, toDate]. Dates are stored
// as YYYY-MM-DD so string comparison orders them correctly.
func exceptionRangeFilter(creatorID, fromDate, toDate string) bson.M {
	return bson.M{
		"creatorId": creatorID,
		"$or": bson.A{
			bson.M{"recurring": true, "date": bson.M{"$lte": toDate}},
			bson.M{
				"recurring": false,
				"date":      bson.M{"$lte": toDate},
				"endDate":   bson.M{"$gte": fromDate},
			},
		},
	}
}
