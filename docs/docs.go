// Package docs sirve la especificación OpenAPI de la API.
// Las anotaciones viven en cada handler.go; regenerar con:
//
//	swag init -g cmd/api/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/appointments": {
            "post": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "Identificador del cliente que escribe",
                        "name": "X-Client-ID",
                        "in": "header",
                        "required": false
                    },
                    {
                        "description": "Datos de la cita; date YYYY-MM-DD, start/end HH:MM",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/appointments.CreateInput"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/appointments.appointmentResponse"
                        }
                    },
                    "400": {
                        "description": "invalid json / datos inválidos",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "409": {
                        "description": "solapamiento",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Crear cita",
                "description": "Agenda una cita. Si el paciente no existe por nombre se crea; el tratamiento queda en su historial con el id de la cita.",
                "tags": [
                    "appointments"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ]
            },
            "get": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "Filtra por día (YYYY-MM-DD)",
                        "name": "date",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "string",
                        "description": "Filtra por paciente",
                        "name": "patientId",
                        "in": "query",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/appointments.appointmentResponse"
                            }
                        }
                    }
                },
                "summary": "Listar citas",
                "tags": [
                    "appointments"
                ],
                "produces": [
                    "application/json"
                ]
            }
        },
        "/appointments/{appointmentID}": {
            "get": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID de la cita",
                        "name": "appointmentID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/appointments.appointmentResponse"
                        }
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Obtener cita",
                "tags": [
                    "appointments"
                ],
                "produces": [
                    "application/json"
                ]
            },
            "delete": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID de la cita",
                        "name": "appointmentID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Eliminar cita",
                "tags": [
                    "appointments"
                ]
            }
        },
        "/appointments/{appointmentID}/payments": {
            "post": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID de la cita",
                        "name": "appointmentID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Importe y método",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/appointments.paymentRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/appointments.paymentResponse"
                        }
                    },
                    "400": {
                        "description": "importe inválido",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Registrar pago",
                "description": "Suma el importe a lo pagado y emite una factura. La cita se guarda antes que la factura.",
                "tags": [
                    "appointments"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ]
            }
        },
        "/appointments/{appointmentID}/schedule": {
            "put": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID de la cita",
                        "name": "appointmentID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Nuevo horario",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/appointments.rescheduleRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/appointments.appointmentResponse"
                        }
                    },
                    "400": {
                        "description": "horario inválido",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "409": {
                        "description": "solapamiento",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Reprogramar cita",
                "tags": [
                    "appointments"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ]
            }
        },
        "/appointments/{appointmentID}/status": {
            "patch": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID de la cita",
                        "name": "appointmentID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Nuevo estado",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/appointments.updateStatusRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/appointments.appointmentResponse"
                        }
                    },
                    "400": {
                        "description": "estado inválido",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Cambiar estado de la cita",
                "tags": [
                    "appointments"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ]
            }
        },
        "/calendar": {
            "get": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "Día (YYYY-MM-DD)",
                        "name": "date",
                        "in": "query",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/appointments.CalendarEntry"
                            }
                        }
                    }
                },
                "summary": "Calendario del día",
                "tags": [
                    "calendar"
                ],
                "produces": [
                    "application/json"
                ]
            }
        },
        "/calendar/draft": {
            "get": {
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/appointments.CreateInput"
                        }
                    },
                    "404": {
                        "description": "no slot chosen",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Borrador de cita pendiente",
                "tags": [
                    "calendar"
                ],
                "produces": [
                    "application/json"
                ]
            }
        },
        "/calendar/slot": {
            "post": {
                "parameters": [
                    {
                        "description": "Día y hora de inicio",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/appointments.slotRequest"
                        }
                    }
                ],
                "responses": {
                    "202": {
                        "description": "Accepted"
                    },
                    "400": {
                        "description": "fuera de horario",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Elegir hueco",
                "tags": [
                    "calendar"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ]
            }
        },
        "/health": {
            "get": {
                "produces": [
                    "text/plain"
                ],
                "tags": [
                    "system"
                ],
                "summary": "Estado del servicio",
                "responses": {
                    "200": {
                        "description": "ok",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/invoices": {
            "get": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "Filtra por cita",
                        "name": "appointmentId",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "string",
                        "description": "Filtra por paciente",
                        "name": "patientId",
                        "in": "query",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/invoices.Invoice"
                            }
                        }
                    }
                },
                "summary": "Listar facturas",
                "tags": [
                    "invoices"
                ],
                "produces": [
                    "application/json"
                ]
            }
        },
        "/notifications": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "notifications"
                ],
                "summary": "Notificaciones recientes",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                },
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Máximo de elementos",
                        "name": "limit",
                        "in": "query",
                        "required": false
                    }
                ]
            }
        },
        "/notifications/{notificationID}": {
            "delete": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "notifications"
                ],
                "summary": "Descartar notificación",
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID de la notificación",
                        "name": "notificationID",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/patients": {
            "post": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "Identificador del cliente que escribe",
                        "name": "X-Client-ID",
                        "in": "header",
                        "required": false
                    },
                    {
                        "description": "Datos del paciente",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/patients.createPatientRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/patients.patientResponse"
                        }
                    },
                    "400": {
                        "description": "invalid json / datos inválidos",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "409": {
                        "description": "nombre duplicado",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Crear paciente",
                "tags": [
                    "patients"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ]
            },
            "get": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "Nombre exacto",
                        "name": "name",
                        "in": "query",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/patients.patientResponse"
                            }
                        }
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Listar pacientes",
                "description": "Sin name devuelve todos; con name busca por nombre sin distinguir mayúsculas.",
                "tags": [
                    "patients"
                ],
                "produces": [
                    "application/json"
                ]
            }
        },
        "/patients/{patientID}": {
            "get": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/patients.patientResponse"
                        }
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Obtener paciente",
                "tags": [
                    "patients"
                ],
                "produces": [
                    "application/json"
                ]
            },
            "patch": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Campos a cambiar",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/patients.updatePatientRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/patients.patientResponse"
                        }
                    },
                    "400": {
                        "description": "datos inválidos",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Actualizar paciente",
                "tags": [
                    "patients"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ]
            },
            "delete": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Eliminar paciente",
                "tags": [
                    "patients"
                ]
            }
        },
        "/patients/{patientID}/budgets": {
            "get": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/budgets.budgetResponse"
                            }
                        }
                    },
                    "404": {
                        "description": "patient not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Listar presupuestos del paciente",
                "tags": [
                    "budgets"
                ],
                "produces": [
                    "application/json"
                ]
            },
            "post": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Título e ítems",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/budgets.createBudgetRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/budgets.budgetResponse"
                        }
                    },
                    "400": {
                        "description": "datos inválidos",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "patient not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Crear presupuesto",
                "tags": [
                    "budgets"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ]
            }
        },
        "/patients/{patientID}/budgets/{budgetID}": {
            "get": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "ID del presupuesto",
                        "name": "budgetID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/budgets.budgetResponse"
                        }
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Obtener presupuesto",
                "tags": [
                    "budgets"
                ],
                "produces": [
                    "application/json"
                ]
            },
            "delete": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "ID del presupuesto",
                        "name": "budgetID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Eliminar presupuesto",
                "tags": [
                    "budgets"
                ]
            }
        },
        "/patients/{patientID}/budgets/{budgetID}/items": {
            "put": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "ID del presupuesto",
                        "name": "budgetID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Ítems",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/budgets.itemsRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/budgets.budgetResponse"
                        }
                    },
                    "400": {
                        "description": "datos inválidos",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Reemplazar ítems",
                "tags": [
                    "budgets"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ]
            }
        },
        "/patients/{patientID}/budgets/{budgetID}/payments": {
            "post": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "ID del presupuesto",
                        "name": "budgetID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Importe",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/budgets.paymentRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/budgets.budgetResponse"
                        }
                    },
                    "400": {
                        "description": "importe inválido",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Registrar pago del presupuesto",
                "tags": [
                    "budgets"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ]
            }
        },
        "/patients/{patientID}/budgets/{budgetID}/status": {
            "patch": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "ID del presupuesto",
                        "name": "budgetID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Nuevo estado",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/budgets.statusRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/budgets.budgetResponse"
                        }
                    },
                    "400": {
                        "description": "estado inválido",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Cambiar estado del presupuesto",
                "tags": [
                    "budgets"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ]
            }
        },
        "/patients/{patientID}/documents": {
            "post": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "file",
                        "description": "Archivo",
                        "name": "file",
                        "in": "formData",
                        "required": true
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/documents.Document"
                        }
                    },
                    "400": {
                        "description": "tipo no permitido",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "patient not found",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "413": {
                        "description": "too large",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Subir documento",
                "description": "Multipart con el campo file. El contenido se sirve desde una URL temporal.",
                "tags": [
                    "documents"
                ],
                "consumes": [
                    "multipart/form-data"
                ],
                "produces": [
                    "application/json"
                ]
            },
            "get": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/documents.Document"
                            }
                        }
                    }
                },
                "summary": "Listar documentos",
                "tags": [
                    "documents"
                ],
                "produces": [
                    "application/json"
                ]
            }
        },
        "/patients/{patientID}/documents/{documentID}": {
            "get": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "ID del documento",
                        "name": "documentID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/documents.Document"
                        }
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Obtener documento",
                "tags": [
                    "documents"
                ],
                "produces": [
                    "application/json"
                ]
            },
            "delete": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "ID del documento",
                        "name": "documentID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Eliminar documento",
                "tags": [
                    "documents"
                ]
            }
        },
        "/patients/{patientID}/documents/{documentID}/content": {
            "get": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "ID del documento",
                        "name": "documentID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "file"
                        }
                    },
                    "404": {
                        "description": "not found / expired",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Contenido del documento",
                "tags": [
                    "documents"
                ],
                "produces": [
                    "application/octet-stream"
                ]
            }
        },
        "/patients/{patientID}/findings": {
            "post": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Diente, cara y tipo",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/patients.findingRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/patients.Finding"
                        }
                    },
                    "400": {
                        "description": "diente o cara inválidos",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Registrar hallazgo",
                "tags": [
                    "odontogram"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ]
            }
        },
        "/patients/{patientID}/findings/{findingID}": {
            "delete": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "ID del hallazgo",
                        "name": "findingID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Quitar hallazgo",
                "tags": [
                    "odontogram"
                ]
            }
        },
        "/patients/{patientID}/odontogram": {
            "get": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/patients.toothResponse"
                            }
                        }
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Odontograma",
                "tags": [
                    "odontogram"
                ],
                "produces": [
                    "application/json"
                ]
            }
        },
        "/patients/{patientID}/periodontal": {
            "get": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/periodontal.chartResponse"
                        }
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Periodontograma",
                "tags": [
                    "periodontal"
                ],
                "produces": [
                    "application/json"
                ]
            },
            "put": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Mediciones por diente",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/periodontal.Chart"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/periodontal.chartResponse"
                        }
                    },
                    "400": {
                        "description": "medición fuera de rango",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Guardar periodontograma",
                "tags": [
                    "periodontal"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ]
            }
        },
        "/patients/{patientID}/treatments": {
            "post": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "ID del paciente",
                        "name": "patientID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Tratamiento",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/patients.treatmentRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/patients.patientResponse"
                        }
                    },
                    "400": {
                        "description": "datos inválidos",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "404": {
                        "description": "not found",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Añadir tratamiento",
                "tags": [
                    "patients"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ]
            }
        },
        "/profile": {
            "get": {
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/profile.Profile"
                        }
                    }
                },
                "summary": "Perfil profesional",
                "tags": [
                    "profile"
                ],
                "produces": [
                    "application/json"
                ]
            },
            "put": {
                "parameters": [
                    {
                        "description": "Perfil; avatar y firma como data URL",
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/profile.Profile"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/profile.Profile"
                        }
                    },
                    "400": {
                        "description": "datos inválidos",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "413": {
                        "description": "imagen demasiado grande",
                        "schema": {
                            "type": "string"
                        }
                    }
                },
                "summary": "Actualizar perfil profesional",
                "tags": [
                    "profile"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ]
            }
        },
        "/session": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "session"
                ],
                "summary": "Estado de la sesión",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            },
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "session"
                ],
                "summary": "Iniciar sesión",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            },
            "delete": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "session"
                ],
                "summary": "Cerrar sesión",
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                }
            }
        },
        "/treatments": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "appointments"
                ],
                "summary": "Catálogo de tratamientos",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/waiting-room": {
            "get": {
                "parameters": [
                    {
                        "type": "string",
                        "description": "Día (YYYY-MM-DD); por defecto hoy",
                        "name": "date",
                        "in": "query",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/appointments.appointmentResponse"
                            }
                        }
                    }
                },
                "summary": "Sala de espera del día",
                "tags": [
                    "appointments"
                ],
                "produces": [
                    "application/json"
                ]
            }
        }
    },
    "definitions": {
        "appointments.CalendarEntry": {
            "type": "object"
        },
        "appointments.CreateInput": {
            "type": "object"
        },
        "appointments.appointmentResponse": {
            "type": "object"
        },
        "appointments.paymentRequest": {
            "type": "object"
        },
        "appointments.paymentResponse": {
            "type": "object"
        },
        "appointments.rescheduleRequest": {
            "type": "object"
        },
        "appointments.slotRequest": {
            "type": "object"
        },
        "appointments.updateStatusRequest": {
            "type": "object"
        },
        "budgets.budgetResponse": {
            "type": "object"
        },
        "budgets.createBudgetRequest": {
            "type": "object"
        },
        "budgets.itemsRequest": {
            "type": "object"
        },
        "budgets.paymentRequest": {
            "type": "object"
        },
        "budgets.statusRequest": {
            "type": "object"
        },
        "documents.Document": {
            "type": "object"
        },
        "invoices.Invoice": {
            "type": "object"
        },
        "patients.Finding": {
            "type": "object"
        },
        "patients.createPatientRequest": {
            "type": "object"
        },
        "patients.findingRequest": {
            "type": "object"
        },
        "patients.patientResponse": {
            "type": "object"
        },
        "patients.toothResponse": {
            "type": "object"
        },
        "patients.treatmentRequest": {
            "type": "object"
        },
        "patients.updatePatientRequest": {
            "type": "object"
        },
        "periodontal.Chart": {
            "type": "object"
        },
        "periodontal.chartResponse": {
            "type": "object"
        },
        "profile.Profile": {
            "type": "object"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Dental Clinic API",
	Description:      "Registro clínico de la consulta: pacientes, citas, facturas, presupuestos y documentos.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
