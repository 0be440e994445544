package dto

type CreateBrandRequest struct {
	Name            string `json:"name" binding:"required,min=1,max=255"`
	OrgID           string `json:"orgId"`
	SocketNamespace string `json:"socketNamespace" binding:"required,min=1,max=64"`
}

type BrandResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	OrgID           string `json:"orgId,omitempty"`
	SocketNamespace string `json:"socketNamespace"`
	CreatedAt       string `json:"createdAt"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
