package goodsreturnnotification

import "returns-notifier/internal/common/validation"

// GetInputSchema describes the shape of the job variables. Presence of
// required values is checked by the dispatcher.
func GetInputSchema() validation.JSONSchema {
	id := validation.Property{Type: "integer", Minimum: validation.Float64Ptr(0)}
	text := validation.Property{Type: "string", MaxLength: validation.IntPtr(255)}

	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"resellerId": id,
			"notificationType": {
				Type:        "integer",
				Description: "1 = new position, 2 = status change",
				Minimum:     validation.Float64Ptr(0),
			},
			"clientId":          id,
			"creatorId":         id,
			"expertId":          id,
			"complaintId":       id,
			"consumptionId":     id,
			"complaintNumber":   text,
			"consumptionNumber": text,
			"agreementNumber":   text,
			"date":              text,
			"differences": {
				Type: "object",
				Properties: map[string]validation.Property{
					"from": {Type: "integer"},
					"to":   {Type: "integer"},
				},
			},
		},
		AdditionalProperties: true,
	}
}
